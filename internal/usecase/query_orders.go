package usecase

import (
	"context"
	"strings"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

// AdminOrderQuery carries the raw administrative filter parameters. Empty
// fields impose no constraint.
type AdminOrderQuery struct {
	Username string
	Status   string
	Start    *time.Time
	End      *time.Time
}

type OrderQueries struct {
	orders      OrderRepo
	cache       OrderCache // optional
	maxPageSize int
}

func NewOrderQueries(orders OrderRepo, cache OrderCache, maxPageSize int) *OrderQueries {
	return &OrderQueries{orders: orders, cache: cache, maxPageSize: maxPageSize}
}

// ListMine is the self-service listing: always scoped to the caller.
func (q *OrderQueries) ListMine(ctx context.Context, p domain.Principal, start, end *time.Time, pr PageRequest) (Page[domain.Order], error) {
	if !p.Authenticated() {
		return Page[domain.Order]{}, domain.ErrNotAuthenticated
	}
	f := OrderFilter{ByOwner{UserID: p.UserID}}
	rng, err := dateRange(start, end)
	if err != nil {
		return Page[domain.Order]{}, err
	}
	if rng != nil {
		f = f.And(*rng)
	}
	return q.find(ctx, f, pr)
}

// ListAll is the administrative listing over every user's orders.
func (q *OrderQueries) ListAll(ctx context.Context, p domain.Principal, in AdminOrderQuery, pr PageRequest) (Page[domain.Order], error) {
	if err := requireAdmin(p); err != nil {
		return Page[domain.Order]{}, err
	}
	f, err := BuildAdminFilter(in)
	if err != nil {
		return Page[domain.Order]{}, err
	}
	return q.find(ctx, f, pr)
}

// BuildAdminFilter turns raw parameters into criteria, rejecting unknown
// status literals and inverted date ranges.
func BuildAdminFilter(in AdminOrderQuery) (OrderFilter, error) {
	var f OrderFilter
	if u := strings.TrimSpace(in.Username); u != "" {
		f = f.And(ByUsernameContains{Substring: u})
	}
	if in.Status != "" {
		st, err := domain.ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		f = f.And(ByStatus{Status: st})
	}
	rng, err := dateRange(in.Start, in.End)
	if err != nil {
		return nil, err
	}
	if rng != nil {
		f = f.And(*rng)
	}
	return f, nil
}

// Get loads one order. Orders the caller may not see are reported exactly
// like missing ones.
func (q *OrderQueries) Get(ctx context.Context, p domain.Principal, id int64) (*domain.Order, error) {
	if !p.Authenticated() {
		return nil, domain.ErrNotAuthenticated
	}
	o, err := q.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.VisibleTo(p) {
		logging.FromCtx(ctx).Info("order hidden from non-owner", "order_id", id, "user_id", p.UserID)
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// Status returns the current status, served from the cache when possible.
// The cached owner id enforces the same visibility rule as Get.
func (q *OrderQueries) Status(ctx context.Context, p domain.Principal, id int64) (domain.Status, error) {
	if !p.Authenticated() {
		return "", domain.ErrNotAuthenticated
	}
	if q.cache != nil {
		cs, ok, err := q.cache.GetStatus(ctx, id)
		if err != nil {
			logging.FromCtx(ctx).Warn("status cache read failed", "order_id", id, "err", err)
		}
		if st, perr := domain.ParseStatus(cs.Status); err == nil && ok && perr == nil {
			if cs.OwnerID != p.UserID && !p.IsAdmin() {
				return "", domain.ErrNotFound
			}
			return st, nil
		}
	}
	o, err := q.Get(ctx, p, id)
	if err != nil {
		return "", err
	}
	if q.cache != nil {
		if err := q.cache.FillStatus(ctx, id, CachedStatus{OwnerID: o.UserID, Status: string(o.Status)}); err != nil {
			logging.FromCtx(ctx).Warn("status cache fill failed", "order_id", id, "err", err)
		}
	}
	return o.Status, nil
}

func (q *OrderQueries) find(ctx context.Context, f OrderFilter, pr PageRequest) (Page[domain.Order], error) {
	pr, err := pr.validate(q.maxPageSize)
	if err != nil {
		return Page[domain.Order]{}, err
	}
	items, total, err := q.orders.Find(ctx, f, pr)
	if err != nil {
		return Page[domain.Order]{}, err
	}
	return newPage(items, pr, total), nil
}

func dateRange(start, end *time.Time) (*ByCreatedRange, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, domain.InvalidArgument("start", "must not be after end")
	}
	return &ByCreatedRange{Start: start, End: end}, nil
}
