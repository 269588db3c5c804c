// Package metrics defines the Prometheus instruments exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the hub.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsIngested     *prometheus.CounterVec
	ValidationErrors    *prometheus.CounterVec
	MatchOutcomes       *prometheus.CounterVec
	ProducerRequests    *prometheus.CounterVec
	UnsubscribeFailures prometheus.Counter
	Deliveries          *prometheus.CounterVec
	DeliveryLatency     prometheus.Histogram
	SnapshotPublishes   *prometheus.CounterVec
	QueueDeadLetters    prometheus.Counter
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RecordsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sirivm_records_ingested_total",
			Help: "Vehicle activity records persisted, by producer subscription",
		}, []string{"subscription_id"}),
		ValidationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sirivm_validation_errors_total",
			Help: "Rejected vehicle activity elements by severity",
		}, []string{"severity"}),
		MatchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sirivm_match_outcomes_total",
			Help: "Reference data matching results",
		}, []string{"outcome"}),
		ProducerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sirivm_producer_requests_total",
			Help: "Requests sent to upstream producers by operation and result",
		}, []string{"operation", "result"}),
		UnsubscribeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "sirivm_unsubscribe_failures_total",
			Help: "Producer terminate requests that failed and were not retried",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sirivm_consumer_deliveries_total",
			Help: "Consumer fan-out ticks by result",
		}, []string{"result"}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sirivm_consumer_delivery_seconds",
			Help:    "Consumer callback POST latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotPublishes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sirivm_snapshot_publishes_total",
			Help: "Feed snapshot uploads by variant and result",
		}, []string{"variant", "result"}),
		QueueDeadLetters: f.NewCounter(prometheus.CounterOpts{
			Name: "sirivm_queue_dead_letters_total",
			Help: "Fan-out messages moved to the dead-letter list",
		}),
	}
}

// ObserveDelivery records a consumer POST outcome.
func (m *Metrics) ObserveDelivery(result string, elapsed time.Duration) {
	m.Deliveries.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.DeliveryLatency.Observe(elapsed.Seconds())
	}
}

// ObserveProducerRequest records an upstream request outcome.
func (m *Metrics) ObserveProducerRequest(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProducerRequests.WithLabelValues(operation, result).Inc()
}
