package http

import (
	"errors"
	"net/http"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/gin-gonic/gin"
)

// writeError maps domain failures to HTTP. Anything unrecognised is a 500
// whose cause stays in the log.
func writeError(c *gin.Context, err error) {
	log := logging.From(c)
	_ = c.Error(err)

	if middleware.Unauthorized(c, err) {
		return
	}

	var ise *domain.InsufficientStockError
	if errors.As(err, &ise) {
		log.Info("order rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":     "insufficient_stock",
			"message":   ise.Error(),
			"productId": ise.ProductID,
			"requested": ise.Requested,
			"available": ise.Available,
		})
		return
	}

	var iae *domain.InvalidArgumentError
	if errors.As(err, &iae) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_argument",
			"field":   iae.Field,
			"message": iae.Reason,
		})
		return
	}

	for _, m := range errorMap {
		if errors.Is(err, m.target) {
			c.AbortWithStatusJSON(m.status, gin.H{"error": m.code, "message": m.message})
			return
		}
	}

	log.Error("request failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

var errorMap = []struct {
	target  error
	status  int
	code    string
	message string
}{
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", "insufficient privileges"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "resource not found"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument", "invalid argument"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "status transition not allowed"},
	{domain.ErrDuplicate, http.StatusConflict, "duplicate_request", "a request with this idempotency key is in progress"},
	{domain.ErrConflict, http.StatusConflict, "conflict", "the resource changed or is in use"},
}

func badRequest(c *gin.Context, field, reason string) {
	writeError(c, domain.InvalidArgument(field, reason))
}
