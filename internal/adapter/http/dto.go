package http

import (
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
)

type orderItemResp struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type orderResp struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"userId"`
	Username   string          `json:"username"`
	Address    string          `json:"address"`
	Number     string          `json:"number"`
	Floor      string          `json:"floor,omitempty"`
	PostalCode string          `json:"postalCode,omitempty"`
	Status     string          `json:"status"`
	Total      string          `json:"total"`
	CreatedAt  time.Time       `json:"createdAt"`
	Items      []orderItemResp `json:"items"`
}

func toOrderResp(o domain.Order) orderResp {
	items := make([]orderItemResp, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResp{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal.StringFixed(2),
		}
	}
	return orderResp{
		ID:         o.ID,
		UserID:     o.UserID,
		Username:   o.Username,
		Address:    o.Delivery.Address,
		Number:     o.Delivery.Number,
		Floor:      o.Delivery.Floor,
		PostalCode: o.Delivery.PostalCode,
		Status:     string(o.Status),
		Total:      o.Total.StringFixed(2),
		CreatedAt:  o.CreatedAt,
		Items:      items,
	}
}

type pageResp[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

func toPageResp[S, T any](p usecase.Page[S], conv func(S) T) pageResp[T] {
	items := make([]T, len(p.Items))
	for i, it := range p.Items {
		items[i] = conv(it)
	}
	return pageResp[T]{
		Items:      items,
		Page:       p.Page,
		Size:       p.Size,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		HasMore:    p.HasMore,
	}
}

type productResp struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Brand       string `json:"brand,omitempty"`
	Category    string `json:"category,omitempty"`
	Active      bool   `json:"active"`
}

func toProductResp(p domain.Product) productResp {
	return productResp{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		Brand:       p.Brand,
		Category:    p.Category,
		Active:      p.Active,
	}
}

type userResp struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResp(u domain.User) userResp {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResp{ID: u.ID, Username: u.Username, Email: u.Email, Roles: roles, CreatedAt: u.CreatedAt}
}
