package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/repo"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type env struct {
	store *repo.SQLStore
	cache *memCache
	idem  *memIdem
	pub   *memPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repo.Open(context.Background(), repo.Options{Dialect: repo.SQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &env{
		store: repo.NewSQLStore(db, repo.SQLite),
		cache: &memCache{m: map[int64]usecase.CachedStatus{}, gone: map[int64]bool{}},
		idem:  &memIdem{locks: map[string]bool{}, vals: map[string]string{}},
		pub:   &memPublisher{},
	}
}

func (e *env) placeOrder(opts ...usecase.PlaceOrderOption) *usecase.PlaceOrder {
	return usecase.NewPlaceOrder(e.store.Users(), e.store.Orders(), e.store, opts...)
}

func (e *env) user(t *testing.T, name string, roles ...string) domain.Principal {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	u := &domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Roles: roles, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return domain.PrincipalOf(*u)
}

func (e *env) product(t *testing.T, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, Active: true}
	require.NoError(t, e.store.Products().Create(context.Background(), p))
	return p
}

func (e *env) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := e.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

var delivery = domain.DeliveryInfo{Address: "1 Main St", Number: "12", Floor: "3", PostalCode: "1000"}

// memCache mirrors RedisCache's fill rules; invalidations never expire.
type memCache struct {
	mu   sync.Mutex
	m    map[int64]usecase.CachedStatus
	gone map[int64]bool
}

func (c *memCache) FillStatus(_ context.Context, id int64, cs usecase.CachedStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[id]; ok || c.gone[id] {
		return nil
	}
	c.m[id] = cs
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id int64) (usecase.CachedStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.m[id]
	return cs, ok, nil
}

func (c *memCache) Forget(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	c.gone[id] = true
	return nil
}

type memIdem struct {
	mu    sync.Mutex
	locks map[string]bool
	vals  map[string]string
}

func (m *memIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if m.locks[k] {
		return false, nil
	}
	m.locks[k] = true
	return true, nil
}

func (m *memIdem) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[scope+":"+key] = value
	return nil
}

func (m *memIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[scope+":"+key]
	return v, ok, nil
}

func (m *memIdem) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+":"+key)
	return nil
}

type memPublisher struct {
	mu      sync.Mutex
	placed  []usecase.OrderPlacedMsg
	changed []usecase.OrderStatusChangedMsg
}

func (p *memPublisher) PublishPlaced(_ context.Context, msg usecase.OrderPlacedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, msg)
	return nil
}

func (p *memPublisher) PublishStatusChanged(_ context.Context, msg usecase.OrderStatusChangedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, msg)
	return nil
}
