package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// transitions lists the successors allowed from each state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

// ParseStatus accepts the exact, case-sensitive literal only.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", InvalidArgument("status", "unknown status "+quote(s))
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Setting the current status again is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Statuses returns the enumerated literals in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

type DeliveryInfo struct {
	Address    string
	Number     string
	Floor      string
	PostalCode string
}

func (d DeliveryInfo) Validate() error {
	if strings.TrimSpace(d.Address) == "" {
		return InvalidArgument("address", "must not be blank")
	}
	if strings.TrimSpace(d.Number) == "" {
		return InvalidArgument("number", "must not be blank")
	}
	return nil
}

// Line is one (product, quantity) pair of a cart.
type Line struct {
	ProductID int64
	Quantity  int
}

type Order struct {
	ID        int64
	UserID    int64
	Username  string
	Delivery  DeliveryInfo
	Status    Status
	Total     decimal.Decimal
	CreatedAt time.Time
	Items     []OrderItem
}

// OrderItem is a frozen snapshot of a purchased line; Subtotal is never
// recomputed from the current product price.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	Subtotal    decimal.Decimal
}

// NewOrderItem freezes unitPrice*quantity as the item subtotal.
func NewOrderItem(productID int64, unitPrice decimal.Decimal, quantity int) OrderItem {
	return OrderItem{
		ProductID: productID,
		Quantity:  quantity,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// SumSubtotals is the order total derived from its items.
func SumSubtotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// OwnedBy reports whether p is the owning user of the order.
func (o *Order) OwnedBy(p Principal) bool {
	return p.Authenticated() && o.UserID == p.UserID
}

// VisibleTo applies the ownership rule: owners and admins only.
func (o *Order) VisibleTo(p Principal) bool {
	return o.OwnedBy(p) || p.IsAdmin()
}

func quote(s string) string { return `"` + s + `"` }
