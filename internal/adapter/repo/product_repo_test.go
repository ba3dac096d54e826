package repo

import (
	"context"
	"testing"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Products()

	p := seedProduct(t, s, "Widget", "9.99", 10)
	require.NotZero(t, p.ID)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, 10, got.Stock)
	assert.True(t, got.Active)

	got.Stock = 4
	got.Category = "tools"
	require.NoError(t, repo.Update(ctx, got))
	// same values again: must not look like a miss
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Stock)
	assert.Equal(t, "tools", again.Category)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, got), domain.ErrNotFound)
}

func TestProductRepo_DecrementStockIsGuarded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProduct(t, s, "Widget", "1.00", 3)

	ok, err := s.Products().DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Products().DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only 1 unit left")

	ok, err = s.Products().DecrementStock(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	ok, err = s.Products().DecrementStock(ctx, 9999, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductRepo_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Products()

	mk := func(name, price, brand, cat string, active bool) {
		p := &domain.Product{Name: name, Price: decimal.RequireFromString(price), Stock: 1,
			Brand: brand, Category: cat, Active: active}
		require.NoError(t, repo.Create(ctx, p))
	}
	mk("Red Mug", "5.00", "acme", "kitchen", true)
	mk("Blue Mug", "7.50", "acme", "kitchen", true)
	mk("Mug_50%", "12.00", "other", "kitchen", true)
	mk("Lamp", "30.00", "acme", "home", false)

	items, total, err := repo.Search(ctx, usecase.ProductFilter{NameContains: "mug"}, usecase.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 3)

	// wildcard characters in the needle are literal
	items, total, err = repo.Search(ctx, usecase.ProductFilter{NameContains: "_50%"}, usecase.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Mug_50%", items[0].Name)

	lo, hi := decimal.RequireFromString("6"), decimal.RequireFromString("20")
	items, _, err = repo.Search(ctx, usecase.ProductFilter{MinPrice: &lo, MaxPrice: &hi}, usecase.PageRequest{Size: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Blue Mug", items[0].Name)

	_, total, err = repo.Search(ctx, usecase.ProductFilter{Category: "KITCHEN"}, usecase.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, total, err = repo.Search(ctx, usecase.ProductFilter{Brand: "acme", ActiveOnly: true}, usecase.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	items, total, err = repo.Search(ctx, usecase.ProductFilter{}, usecase.PageRequest{Page: 1, Size: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Lamp", items[0].Name)
}

func TestProductRepo_ReferencesAndTopSelling(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := seedUser(t, s, "alice")
	a := seedProduct(t, s, "A", "1.00", 100)
	b := seedProduct(t, s, "B", "1.00", 100)
	c := seedProduct(t, s, "C", "1.00", 100)

	seedOrder(t, s, u, a, 2, domain.StatusPending, now())
	seedOrder(t, s, u, b, 5, domain.StatusPending, now())
	seedOrder(t, s, u, a, 4, domain.StatusPending, now())

	used, err := s.Products().IsReferenced(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = s.Products().IsReferenced(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, used)

	top, err := s.Products().TopSelling(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, domain.ProductSales{ProductID: a.ID, Name: "A", Quantity: 6}, top[0])
	assert.Equal(t, domain.ProductSales{ProductID: b.ID, Name: "B", Quantity: 5}, top[1])

	top, err = s.Products().TopSelling(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}
