package usecase

import (
	"math"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/shopspring/decimal"
)

// Criterion is one order query constraint. Implementations are the closed set
// below; repositories switch on the concrete type.
type Criterion interface {
	criterion()
}

// ByOwner restricts to orders owned by UserID.
type ByOwner struct{ UserID int64 }

// ByStatus is an exact status match.
type ByStatus struct{ Status domain.Status }

// ByCreatedRange bounds created_at inclusively; a nil bound is open.
type ByCreatedRange struct {
	Start *time.Time
	End   *time.Time
}

// ByUsernameContains is a case-insensitive substring match on the owner.
type ByUsernameContains struct{ Substring string }

func (ByOwner) criterion()            {}
func (ByStatus) criterion()           {}
func (ByCreatedRange) criterion()     {}
func (ByUsernameContains) criterion() {}

// OrderFilter is the conjunction of its criteria. The empty filter matches all.
type OrderFilter []Criterion

func (f OrderFilter) And(c ...Criterion) OrderFilter {
	out := make(OrderFilter, 0, len(f)+len(c))
	out = append(out, f...)
	return append(out, c...)
}

type ProductFilter struct {
	NameContains string
	Category     string
	Brand        string
	ActiveOnly   bool
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
}

// PageRequest is zero-based.
type PageRequest struct {
	Page int
	Size int
}

func (pr PageRequest) Offset() int { return pr.Page * pr.Size }

func (pr PageRequest) validate(maxSize int) (PageRequest, error) {
	if pr.Page < 0 {
		return pr, domain.InvalidArgument("page", "must be >= 0")
	}
	if pr.Size <= 0 {
		return pr, domain.InvalidArgument("size", "must be > 0")
	}
	if maxSize > 0 && pr.Size > maxSize {
		pr.Size = maxSize
	}
	// Offset must stay representable in every backend's LIMIT/OFFSET.
	if pr.Page > math.MaxInt32/pr.Size {
		return pr, domain.InvalidArgument("page", "too large for page size")
	}
	return pr, nil
}

type Page[T any] struct {
	Items      []T
	Page       int
	Size       int
	Total      int64
	TotalPages int64
	HasMore    bool
}

func newPage[T any](items []T, pr PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       pr.Page,
		Size:       pr.Size,
		Total:      total,
		TotalPages: calculateTotalPages(total, pr.Size),
		HasMore:    int64(pr.Offset()+len(items)) < total,
	}
}

func calculateTotalPages(total int64, size int) int64 {
	if size == 0 {
		return 0
	}
	return (total + int64(size) - 1) / int64(size)
}
