package kafka

import (
	"context"
	"errors"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
)

// StatusUpdater is the lifecycle operation the handler drives.
type StatusUpdater interface {
	Execute(ctx context.Context, p domain.Principal, orderID int64, to domain.Status) (*domain.Order, error)
}

// FulfillmentStatusHandler applies status reports from the fulfillment system
// through the regular lifecycle operation, acting as an internal admin.
type FulfillmentStatusHandler struct {
	updater   StatusUpdater
	principal domain.Principal
}

func NewFulfillmentStatusHandler(updater StatusUpdater) *FulfillmentStatusHandler {
	return &FulfillmentStatusHandler{updater: updater, principal: domain.SystemPrincipal("fulfillment")}
}

// Handle returns an error only for failures worth a retry. Events that can
// never apply (unknown status, missing order, rejected transition) are dropped.
func (h *FulfillmentStatusHandler) Handle(ctx context.Context, ev usecase.FulfillmentStatusMsg) error {
	log := logging.FromCtx(ctx).With("order_id", ev.OrderID, "status", ev.Status)

	to, err := domain.ParseStatus(ev.Status)
	if err != nil {
		log.Warn("dropping fulfillment event with unknown status")
		return nil
	}
	_, err = h.updater.Execute(ctx, h.principal, ev.OrderID, to)
	switch {
	case err == nil:
		log.Info("fulfillment status applied", "occurred_at", ev.OccurredAt)
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConflict):
		log.Warn("dropping fulfillment event", "err", err)
		return nil
	default:
		return err
	}
}
