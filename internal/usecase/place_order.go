package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/metrics"
	"github.com/google/uuid"
)

const idempotencyScope = "place-order"

type PlaceOrderInput struct {
	Principal      domain.Principal
	Delivery       domain.DeliveryInfo
	Lines          []domain.Line
	IdempotencyKey string
}

type PlaceOrder struct {
	users  UserRepo
	orders OrderRepo
	uow    UnitOfWork
	idem   IdempotencyStore // optional
	cache  OrderCache       // optional
	events EventPublisher   // optional
	now    func() time.Time
}

type PlaceOrderOption func(*PlaceOrder)

func WithIdempotency(s IdempotencyStore) PlaceOrderOption {
	return func(uc *PlaceOrder) { uc.idem = s }
}
func WithPlacementCache(c OrderCache) PlaceOrderOption {
	return func(uc *PlaceOrder) { uc.cache = c }
}
func WithPlacementEvents(p EventPublisher) PlaceOrderOption {
	return func(uc *PlaceOrder) { uc.events = p }
}
func WithClock(now func() time.Time) PlaceOrderOption {
	return func(uc *PlaceOrder) { uc.now = now }
}

func NewPlaceOrder(users UserRepo, orders OrderRepo, uow UnitOfWork, opts ...PlaceOrderOption) *PlaceOrder {
	uc := &PlaceOrder{users: users, orders: orders, uow: uow, now: time.Now}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *PlaceOrder) Execute(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	log := logging.FromCtx(ctx)

	user, err := uc.resolveUser(ctx, in.Principal)
	if err != nil {
		return nil, uc.reject(err)
	}
	if err := validateCart(in.Delivery, in.Lines); err != nil {
		return nil, uc.reject(err)
	}
	lines, err := mergeLines(in.Lines)
	if err != nil {
		return nil, uc.reject(err)
	}

	scope := idempotencyScope + ":" + strconv.FormatInt(user.ID, 10)
	if uc.idem != nil && in.IdempotencyKey != "" {
		if prev, ok, err := uc.recall(ctx, scope, in.IdempotencyKey, user.ID); err != nil || ok {
			return prev, err
		}
		locked, err := uc.idem.TryLock(ctx, scope, in.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lock: %w", err)
		}
		if !locked {
			return nil, uc.reject(domain.ErrDuplicate)
		}
	}

	order, err := uc.place(ctx, user, in.Delivery, lines)
	if err != nil {
		if uc.idem != nil && in.IdempotencyKey != "" {
			_ = uc.idem.Release(ctx, scope, in.IdempotencyKey)
		}
		return nil, uc.reject(err)
	}
	metrics.OrdersPlaced.Inc()
	log.Info("order placed", "order_id", order.ID, "user_id", user.ID, "total", order.Total.String(), "items", len(order.Items))

	if uc.idem != nil && in.IdempotencyKey != "" {
		if err := uc.idem.Remember(ctx, scope, in.IdempotencyKey, strconv.FormatInt(order.ID, 10)); err != nil {
			log.Warn("idempotency remember failed", "order_id", order.ID, "err", err)
		}
	}
	uc.afterCommit(ctx, order)
	return order, nil
}

// place runs the validate-then-reserve sequence in one transaction. Nothing is
// written until every line has passed the stock check, and each decrement is
// still guarded by the store in case a concurrent placement got there first.
func (uc *PlaceOrder) place(ctx context.Context, user *domain.User, delivery domain.DeliveryInfo, lines []domain.Line) (*domain.Order, error) {
	var order *domain.Order
	err := uc.uow.WithinTx(ctx, func(ctx context.Context, s Store) error {
		products := make([]*domain.Product, len(lines))
		for i, line := range lines {
			p, err := s.Products().GetByID(ctx, line.ProductID)
			if errors.Is(err, domain.ErrNotFound) || (err == nil && !p.Active) {
				return domain.ProductNotFound(line.ProductID)
			}
			if err != nil {
				return fmt.Errorf("load product %d: %w", line.ProductID, err)
			}
			if p.Stock-line.Quantity < 0 {
				return &domain.InsufficientStockError{
					ProductID: p.ID,
					Requested: line.Quantity,
					Available: p.Stock,
				}
			}
			products[i] = p
		}

		items := make([]domain.OrderItem, 0, len(lines))
		for i, line := range lines {
			p := products[i]
			ok, err := s.Products().DecrementStock(ctx, p.ID, line.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock %d: %w", p.ID, err)
			}
			if !ok {
				return fmt.Errorf("product %d stock changed concurrently: %w", p.ID, domain.ErrConflict)
			}
			p.Stock -= line.Quantity
			item := domain.NewOrderItem(p.ID, p.Price, line.Quantity)
			item.ProductName = p.Name
			items = append(items, item)
		}

		o := &domain.Order{
			UserID:    user.ID,
			Username:  user.Username,
			Delivery:  delivery,
			Status:    domain.StatusPending,
			Total:     domain.SumSubtotals(items),
			CreatedAt: uc.now().UTC().Truncate(time.Microsecond),
			Items:     items,
		}
		if err := s.Orders().Create(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (uc *PlaceOrder) resolveUser(ctx context.Context, p domain.Principal) (*domain.User, error) {
	if !p.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	u, err := uc.users.GetByID(ctx, p.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}

func (uc *PlaceOrder) recall(ctx context.Context, scope, key string, userID int64) (*domain.Order, bool, error) {
	val, ok, err := uc.idem.Recall(ctx, scope, key)
	if err != nil || !ok {
		return nil, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, false, nil
	}
	o, err := uc.orders.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if o.UserID != userID {
		return nil, false, nil
	}
	logging.FromCtx(ctx).Info("idempotent replay", "order_id", o.ID, "key", key)
	return o, true, nil
}

func (uc *PlaceOrder) afterCommit(ctx context.Context, o *domain.Order) {
	log := logging.FromCtx(ctx)
	if uc.cache != nil {
		if err := uc.cache.FillStatus(ctx, o.ID, CachedStatus{OwnerID: o.UserID, Status: string(o.Status)}); err != nil {
			log.Warn("status cache write failed", "order_id", o.ID, "err", err)
		}
	}
	if uc.events != nil {
		err := uc.events.PublishPlaced(ctx, OrderPlacedMsg{
			MessageID: uuid.NewString(),
			OrderID:   o.ID,
			UserID:    o.UserID,
			Total:     o.Total.StringFixed(2),
			ItemCount: len(o.Items),
			CreatedAt: o.CreatedAt,
		})
		if err != nil {
			metrics.EventsPublishFailed.WithLabelValues("order.placed").Inc()
			log.Warn("publish order.placed failed", "order_id", o.ID, "err", err)
		}
	}
}

func (uc *PlaceOrder) reject(err error) error {
	metrics.PlacementRejected.WithLabelValues(rejectReason(err)).Inc()
	return err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	default:
		return "internal"
	}
}

// maxLineQuantity bounds a single product's requested quantity, before and
// after merging, so it fits the stock and quantity columns.
const maxLineQuantity = math.MaxInt32

func validateCart(d domain.DeliveryInfo, lines []domain.Line) error {
	if len(lines) == 0 {
		return domain.InvalidArgument("items", "at least one line is required")
	}
	for _, l := range lines {
		if l.Quantity < 1 {
			return domain.InvalidArgument("quantity", fmt.Sprintf("product %d: quantity must be >= 1", l.ProductID))
		}
		if l.Quantity > maxLineQuantity {
			return domain.InvalidArgument("quantity", fmt.Sprintf("product %d: quantity must be <= %d", l.ProductID, maxLineQuantity))
		}
	}
	return d.Validate()
}

// mergeLines folds repeated products into one line, keeping first-seen order,
// so the stock check sees the full quantity requested per product.
func mergeLines(lines []domain.Line) ([]domain.Line, error) {
	idx := make(map[int64]int, len(lines))
	out := make([]domain.Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			if l.Quantity > maxLineQuantity-out[i].Quantity {
				return nil, domain.InvalidArgument("quantity", fmt.Sprintf("product %d: combined quantity must be <= %d", l.ProductID, maxLineQuantity))
			}
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}
