package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders committed by the placement engine",
		},
	)

	PlacementRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_placements_rejected_total",
			Help: "Order placements that failed, by reason",
		},
		[]string{"reason"},
	)

	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_status_updates_total",
			Help: "Order status transitions applied, by target status",
		},
		[]string{"status"},
	)

	EventsPublishFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_publish_failed_total",
			Help: "Domain events that could not be published",
		},
		[]string{"event"},
	)
)
