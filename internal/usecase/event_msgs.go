package usecase

import "time"

// Published on order.placed after the placement transaction commits.
type OrderPlacedMsg struct {
	MessageID string    `json:"messageId"`
	OrderID   int64     `json:"orderId"`
	UserID    int64     `json:"userId"`
	Total     string    `json:"total"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Published on order.status_changed.
type OrderStatusChangedMsg struct {
	MessageID string    `json:"messageId"`
	OrderID   int64     `json:"orderId"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

// Sent by the fulfillment system on Kafka.
type FulfillmentStatusMsg struct {
	OrderID    int64     `json:"orderId"`
	Status     string    `json:"status"` // one of the order status literals
	OccurredAt time.Time `json:"occurredAt"`
}
