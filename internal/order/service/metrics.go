package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders appended to the collection.",
	})

	validationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_validation_failures_total",
		Help: "Total rejected order fields grouped by field name.",
	}, []string{"field"})
)
