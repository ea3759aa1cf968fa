// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pharmacy",
	Subsystem: "credit",
	Name:      "ledger_operations_total",
	Help:      "Ledger writes by transaction type and outcome.",
}, []string{"type", "outcome"})

var LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "pharmacy",
	Subsystem: "credit",
	Name:      "ledger_operation_seconds",
	Help:      "Time spent applying a ledger write, including the database transaction.",
	Buckets:   prometheus.DefBuckets,
}, []string{"type"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pharmacy",
	Subsystem: "credit",
	Name:      "http_requests_total",
	Help:      "HTTP requests by route and status code.",
}, []string{"method", "route", "status"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "pharmacy",
	Subsystem: "credit",
	Name:      "http_request_seconds",
	Help:      "HTTP request latency by route.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

var OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pharmacy",
	Subsystem: "credit",
	Name:      "outbox_events_total",
	Help:      "Outbox events relayed to Kafka by outcome.",
}, []string{"outcome"})

var ReconcileMismatches = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pharmacy",
	Subsystem: "credit",
	Name:      "reconcile_mismatches",
	Help:      "Customers whose balance differed from their ledger sum on the last full reconciliation.",
})

// ObserveLedgerOp records one ledger write.
func ObserveLedgerOp(txType, outcome string, elapsed time.Duration) {
	LedgerOperations.WithLabelValues(txType, outcome).Inc()
	LedgerOperationDuration.WithLabelValues(txType).Observe(elapsed.Seconds())
}
