package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CarrierRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_carrier_requests_total",
		Help: "Total number of carrier API calls by carrier, operation and outcome.",
	},
		[]string{"carrier", "operation", "outcome"},
	)

	CarrierRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_carrier_request_duration_seconds",
		Help:    "Latency of carrier API calls.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"carrier", "operation"},
	)

	PaymentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_payment_requests_total",
		Help: "Total number of payment processor calls by operation and outcome.",
	},
		[]string{"operation", "outcome"},
	)

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_orders_placed_total",
		Help: "Total number of orders successfully placed.",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_order_transitions_total",
		Help: "Total number of order status transitions by target status and outcome.",
	},
		[]string{"status", "outcome"},
	)

	LabelsPurchasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_labels_purchased_total",
		Help: "Total number of shipping labels purchased by carrier.",
	},
		[]string{"carrier"},
	)

	DuplicateLabelRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_duplicate_label_rejections_total",
		Help: "Total number of label purchases rejected because the order already has a label.",
	})

	TrackingRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_tracking_refreshes_total",
		Help: "Total number of tracking refreshes by outcome.",
	},
		[]string{"outcome"},
	)

	ReturnsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_returns_created_total",
		Help: "Total number of return requests successfully accepted.",
	})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_refunds_total",
		Help: "Total number of refund attempts by outcome.",
	},
		[]string{"outcome"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_events_published_total",
		Help: "Total number of domain events published by topic and outcome.",
	},
		[]string{"topic", "outcome"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveCarrierCall records one carrier API call.
func ObserveCarrierCall(carrier, operation string, start time.Time, err error) {
	CarrierRequestDuration.WithLabelValues(carrier, operation).Observe(time.Since(start).Seconds())
	CarrierRequestsTotal.WithLabelValues(carrier, operation, Outcome(err)).Inc()
}
