package repo

import (
	"context"
	"testing"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := Open(context.Background(), Options{Dialect: SQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db, SQLite)
}

func seedUser(t *testing.T, s *SQLStore, username string, roles ...string) *domain.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	u := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, s *SQLStore, name, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
	require.NoError(t, s.Products().Create(context.Background(), p))
	return p
}

func seedOrder(t *testing.T, s *SQLStore, u *domain.User, p *domain.Product, qty int, status domain.Status, at time.Time) *domain.Order {
	t.Helper()
	item := domain.NewOrderItem(p.ID, p.Price, qty)
	o := &domain.Order{
		UserID:    u.ID,
		Username:  u.Username,
		Delivery:  domain.DeliveryInfo{Address: "Main St", Number: "1"},
		Status:    status,
		Total:     item.Subtotal,
		CreatedAt: at.UTC(),
		Items:     []domain.OrderItem{item},
	}
	require.NoError(t, s.Orders().Create(context.Background(), o))
	return o
}
