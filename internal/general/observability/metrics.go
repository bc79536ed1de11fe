// Package observability holds Prometheus metrics for the marketplace.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts marketplace operations by name and outcome
	// ("ok" or the taxonomy error name).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_market", Name: "operations_total", Help: "Total marketplace operations"},
		[]string{"op", "outcome"},
	)

	// OperationDuration measures the critical section of each operation,
	// lock acquisition through commit.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_market",
			Name:      "operation_duration_seconds",
			Help:      "Marketplace operation duration (lock to commit)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// PaymentDeltasTotal counts emitted payment deltas by direction.
	PaymentDeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_market", Name: "payment_deltas_total", Help: "Payment deltas emitted after share recomputation"},
		[]string{"kind"}, // charge | refund
	)

	// PaymentReconcileQueued counts gateway deliveries deferred to the
	// reconcile queue.
	PaymentReconcileQueued = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_market", Name: "payment_reconcile_queued_total", Help: "Payment instructions queued for reconciliation"},
	)

	// OpenRequests tracks requests currently in OPEN state.
	OpenRequests = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "ride_market", Name: "open_requests", Help: "Rider requests currently open for bidding"},
	)
)
