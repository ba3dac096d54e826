package usecase

import (
	"context"
	"fmt"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/metrics"
	"github.com/google/uuid"
)

// UpdateStatus is the admin-only lifecycle operation. By default the new
// status overwrites the current one unconditionally; with strict set, only
// transitions allowed by the state machine are accepted.
type UpdateStatus struct {
	orders OrderRepo
	cache  OrderCache     // optional
	events EventPublisher // optional
	strict bool
	now    func() time.Time
}

func NewUpdateStatus(orders OrderRepo, cache OrderCache, events EventPublisher, strict bool) *UpdateStatus {
	return &UpdateStatus{orders: orders, cache: cache, events: events, strict: strict, now: time.Now}
}

func (uc *UpdateStatus) Execute(ctx context.Context, p domain.Principal, orderID int64, to domain.Status) (*domain.Order, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, domain.InvalidArgument("status", "unknown status "+string(to))
	}

	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	from := o.Status

	if uc.strict {
		if !from.CanTransitionTo(to) {
			return nil, fmt.Errorf("%s -> %s: %w", from, to, domain.ErrInvalidTransition)
		}
		ok, err := uc.orders.UpdateStatusIf(ctx, orderID, from, to)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("order %d status changed concurrently: %w", orderID, domain.ErrConflict)
		}
	} else if err := uc.orders.UpdateStatus(ctx, orderID, to); err != nil {
		return nil, err
	}
	o.Status = to

	metrics.StatusUpdates.WithLabelValues(string(to)).Inc()
	log := logging.FromCtx(ctx)
	log.Info("order status updated", "order_id", orderID, "from", from, "to", to, "by", p.Username)

	if uc.cache != nil {
		if err := uc.cache.Forget(ctx, orderID); err != nil {
			log.Warn("status cache evict failed", "order_id", orderID, "err", err)
		}
	}
	if uc.events != nil {
		err := uc.events.PublishStatusChanged(ctx, OrderStatusChangedMsg{
			MessageID: uuid.NewString(),
			OrderID:   orderID,
			Status:    string(to),
			ChangedAt: uc.now().UTC(),
		})
		if err != nil {
			metrics.EventsPublishFailed.WithLabelValues("order.status_changed").Inc()
			log.Warn("publish order.status_changed failed", "order_id", orderID, "err", err)
		}
	}
	return o, nil
}

type DeleteOrder struct {
	orders OrderRepo
	cache  OrderCache // optional
}

func NewDeleteOrder(orders OrderRepo, cache OrderCache) *DeleteOrder {
	return &DeleteOrder{orders: orders, cache: cache}
}

// Execute removes the order and, by cascade, its items. Stock is not restored.
func (uc *DeleteOrder) Execute(ctx context.Context, p domain.Principal, orderID int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if err := uc.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	log := logging.FromCtx(ctx)
	log.Info("order deleted", "order_id", orderID, "by", p.Username)
	if uc.cache != nil {
		if err := uc.cache.Forget(ctx, orderID); err != nil {
			log.Warn("status cache evict failed", "order_id", orderID, "err", err)
		}
	}
	return nil
}

func requireAdmin(p domain.Principal) error {
	if !p.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	if !p.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}
