package http

import (
	"net/http"
	"strconv"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	queries *usecase.OrderQueries
	update  *usecase.UpdateStatus
	remove  *usecase.DeleteOrder
	stats   *usecase.Stats
	pages   PageDefaults
}

func NewAdminHandler(queries *usecase.OrderQueries, update *usecase.UpdateStatus, remove *usecase.DeleteOrder, stats *usecase.Stats, pages PageDefaults) *AdminHandler {
	return &AdminHandler{queries: queries, update: update, remove: remove, stats: stats, pages: pages}
}

// ListOrders handles GET /v1/admin/orders?username=&status=&startDate=&endDate=&page=&size=.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	start, ok := queryTime(c, "startDate", false)
	if !ok {
		return
	}
	end, ok := queryTime(c, "endDate", true)
	if !ok {
		return
	}
	pr, ok := h.pages.parse(c)
	if !ok {
		return
	}
	page, err := h.queries.ListAll(c.Request.Context(), middleware.PrincipalFrom(c), usecase.AdminOrderQuery{
		Username: c.Query("username"),
		Status:   c.Query("status"),
		Start:    start,
		End:      end,
	}, pr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResp(page, toOrderResp))
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed JSON")
		return
	}
	st, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	o, err := h.update.Execute(c.Request.Context(), middleware.PrincipalFrom(c), id, st)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(*o))
}

func (h *AdminHandler) DeleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.remove.Execute(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) TopProducts(c *gin.Context) {
	rows, err := h.stats.TopProducts(c.Request.Context(), middleware.PrincipalFrom(c), queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, len(rows))
	for i, r := range rows {
		out[i] = gin.H{"productId": r.ProductID, "name": r.Name, "quantity": r.Quantity}
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h *AdminHandler) TopCustomers(c *gin.Context) {
	rows, err := h.stats.TopCustomers(c.Request.Context(), middleware.PrincipalFrom(c), queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, len(rows))
	for i, r := range rows {
		out[i] = gin.H{"username": r.Username, "ordersCount": r.OrdersCount}
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// queryLimit leaves range checks to the stats use case; junk means default.
func queryLimit(c *gin.Context) int {
	n, _ := strconv.Atoi(c.Query("limit"))
	return n
}
