package queue

import (
	"context"
	"errors"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
)

// OrderPlacedHandler warms the status cache from order.placed.q. It reads the
// ledger rather than trusting the event, so a late delivery never caches a
// stale PENDING over a newer status.
type OrderPlacedHandler struct {
	orders usecase.OrderRepo
	cache  usecase.OrderCache
}

func NewOrderPlacedHandler(orders usecase.OrderRepo, cache usecase.OrderCache) *OrderPlacedHandler {
	return &OrderPlacedHandler{orders: orders, cache: cache}
}

func (h *OrderPlacedHandler) HandlePlaced(ctx context.Context, msg usecase.OrderPlacedMsg) error {
	log := logging.FromCtx(ctx)
	if msg.OrderID <= 0 {
		return errors.Join(ErrPoison, errors.New("order.placed without orderId"))
	}
	o, err := h.orders.GetByID(ctx, msg.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("placed order no longer exists", "order_id", msg.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.cache.FillStatus(ctx, o.ID, usecase.CachedStatus{OwnerID: o.UserID, Status: string(o.Status)}); err != nil {
		return err
	}
	log.Info("order.placed consumed", "order_id", o.ID, "user_id", o.UserID, "total", msg.Total)
	return nil
}

// Handler returns the delivery adapter for Router.Register.
func (h *OrderPlacedHandler) Handler() Handler {
	return JSONHandler[usecase.OrderPlacedMsg]{HandleFunc: h.HandlePlaced}
}
