package usecase

import (
	"context"

	domain "github.com/aq2208/storefront-api/internal/entity"
)

type ProductRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	// DecrementStock subtracts qty only while stock >= qty. false means the
	// guard did not match (stock moved underneath us or the row is gone).
	DecrementStock(ctx context.Context, id int64, qty int) (bool, error)
	Search(ctx context.Context, f ProductFilter, pr PageRequest) ([]domain.Product, int64, error)
	IsReferenced(ctx context.Context, id int64) (bool, error)
	TopSelling(ctx context.Context, limit int) ([]domain.ProductSales, error)
}

type OrderRepo interface {
	// Create inserts the order and its items, filling in generated ids.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, to domain.Status) error
	UpdateStatusIf(ctx context.Context, id int64, from, to domain.Status) (bool, error)
	Delete(ctx context.Context, id int64) error
	Find(ctx context.Context, f OrderFilter, pr PageRequest) ([]domain.Order, int64, error)
	TopCustomers(ctx context.Context, limit int) ([]domain.CustomerOrders, error)
}

type UserRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	EnsureRole(ctx context.Context, name string) error
	List(ctx context.Context, usernameContains string, pr PageRequest) ([]domain.User, int64, error)
	SetRoles(ctx context.Context, id int64, roles []string) error
	// Delete reports Conflict while the user still owns orders.
	Delete(ctx context.Context, id int64) error
}

// Store groups the repositories bound to one transaction.
type Store interface {
	Products() ProductRepo
	Orders() OrderRepo
}

// UnitOfWork runs fn in a single transaction; fn's error rolls it back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// CachedStatus keeps the owner next to the status so cached reads can apply
// the ownership rule without touching the ledger.
type CachedStatus struct {
	OwnerID int64
	Status  string
}

// OrderCache is a read-through status cache. Only readers fill it; writers
// Forget after the ledger changes. FillStatus is a no-op while the entry is
// present or an invalidation is still recent, so a reader holding a row from
// before a change cannot overwrite the invalidation.
type OrderCache interface {
	FillStatus(ctx context.Context, orderID int64, cs CachedStatus) error
	GetStatus(ctx context.Context, orderID int64) (CachedStatus, bool, error)
	Forget(ctx context.Context, orderID int64) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

type EventPublisher interface {
	PublishPlaced(ctx context.Context, msg OrderPlacedMsg) error
	PublishStatusChanged(ctx context.Context, msg OrderStatusChangedMsg) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
