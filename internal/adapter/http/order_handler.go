package http

import (
	"net/http"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	place   *usecase.PlaceOrder
	queries *usecase.OrderQueries
	pages   PageDefaults
}

func NewOrderHandler(place *usecase.PlaceOrder, queries *usecase.OrderQueries, pages PageDefaults) *OrderHandler {
	return &OrderHandler{place: place, queries: queries, pages: pages}
}

type placeOrderReq struct {
	Address    string `json:"address"`
	Number     string `json:"number"`
	Floor      string `json:"floor"`
	PostalCode string `json:"postalCode"`
	Items      []struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

// PlaceOrder handles POST /v1/orders.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed JSON")
		return
	}
	lines := make([]domain.Line, len(req.Items))
	for i, it := range req.Items {
		lines[i] = domain.Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, err := h.place.Execute(c.Request.Context(), usecase.PlaceOrderInput{
		Principal: middleware.PrincipalFrom(c),
		Delivery: domain.DeliveryInfo{
			Address:    req.Address,
			Number:     req.Number,
			Floor:      req.Floor,
			PostalCode: req.PostalCode,
		},
		Lines:          lines,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResp(*o))
}

// ListMine handles GET /v1/orders?start=&end=&page=&size=.
func (h *OrderHandler) ListMine(c *gin.Context) {
	start, ok := queryTime(c, "start", false)
	if !ok {
		return
	}
	end, ok := queryTime(c, "end", true)
	if !ok {
		return
	}
	pr, ok := h.pages.parse(c)
	if !ok {
		return
	}
	page, err := h.queries.ListMine(c.Request.Context(), middleware.PrincipalFrom(c), start, end, pr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResp(page, toOrderResp))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.queries.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(*o))
}

func (h *OrderHandler) GetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	st, err := h.queries.Status(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": id, "status": st})
}
