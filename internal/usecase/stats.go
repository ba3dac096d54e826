package usecase

import (
	"context"

	domain "github.com/aq2208/storefront-api/internal/entity"
)

const defaultStatsLimit = 5

type Stats struct {
	products ProductRepo
	orders   OrderRepo
}

func NewStats(products ProductRepo, orders OrderRepo) *Stats {
	return &Stats{products: products, orders: orders}
}

// TopProducts ranks products by total quantity sold.
func (s *Stats) TopProducts(ctx context.Context, p domain.Principal, limit int) ([]domain.ProductSales, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.products.TopSelling(ctx, statsLimit(limit))
}

// TopCustomers ranks users by number of orders placed.
func (s *Stats) TopCustomers(ctx context.Context, p domain.Principal, limit int) ([]domain.CustomerOrders, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.orders.TopCustomers(ctx, statsLimit(limit))
}

func statsLimit(n int) int {
	if n <= 0 || n > 100 {
		return defaultStatsLimit
	}
	return n
}
