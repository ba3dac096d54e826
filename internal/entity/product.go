package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Brand       string
	Category    string
	Active      bool
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return InvalidArgument("name", "must not be blank")
	}
	if p.Price.IsNegative() {
		return InvalidArgument("price", "must be >= 0")
	}
	if p.Stock < 0 {
		return InvalidArgument("stock", "must be >= 0")
	}
	return nil
}

// ProductSales is one row of the best-sellers report.
type ProductSales struct {
	ProductID int64
	Name      string
	Quantity  int64
}

// CustomerOrders is one row of the top-customers report.
type CustomerOrders struct {
	Username    string
	OrdersCount int64
}
