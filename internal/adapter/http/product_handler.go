package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	catalog *usecase.Catalog
	pages   PageDefaults
}

func NewProductHandler(catalog *usecase.Catalog, pages PageDefaults) *ProductHandler {
	return &ProductHandler{catalog: catalog, pages: pages}
}

type productReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Active      *bool  `json:"active"`
}

func (r productReq) toProduct(id int64) (*domain.Product, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil {
		return nil, domain.InvalidArgument("price", "must be a decimal number")
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &domain.Product{
		ID:          id,
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Price:       price,
		Stock:       r.Stock,
		Brand:       r.Brand,
		Category:    r.Category,
		Active:      active,
	}, nil
}

// Search handles GET /v1/products?name=&category=&brand=&minPrice=&maxPrice=&page=&size=.
func (h *ProductHandler) Search(c *gin.Context) {
	minPrice, ok := queryDecimal(c, "minPrice")
	if !ok {
		return
	}
	maxPrice, ok := queryDecimal(c, "maxPrice")
	if !ok {
		return
	}
	pr, ok := h.pages.parse(c)
	if !ok {
		return
	}
	page, err := h.catalog.Search(c.Request.Context(), middleware.PrincipalFrom(c), usecase.ProductFilter{
		NameContains: c.Query("name"),
		Category:     c.Query("category"),
		Brand:        c.Query("brand"),
		ActiveOnly:   c.Query("active") == "true",
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
	}, pr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResp(page, toProductResp))
}

// Random handles GET /v1/products/random?count=.
func (h *ProductHandler) Random(c *gin.Context) {
	n := 0
	if raw := c.Query("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			badRequest(c, "count", "must be a positive integer")
			return
		}
		n = v
	}
	items, err := h.catalog.Random(c.Request.Context(), n)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]productResp, len(items))
	for i, p := range items {
		out[i] = toProductResp(p)
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.catalog.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResp(*p))
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed JSON")
		return
	}
	p, err := req.toProduct(0)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.catalog.Create(c.Request.Context(), middleware.PrincipalFrom(c), p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResp(*p))
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed JSON")
		return
	}
	p, err := req.toProduct(id)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.catalog.Update(c.Request.Context(), middleware.PrincipalFrom(c), p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResp(*p))
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
