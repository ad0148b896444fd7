// Package metrics exposes Prometheus collectors for the customer service.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "customer"

// CustomerMetrics records service operations, cache lookups and notifications.
type CustomerMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewCustomerMetrics registers the collectors with the default registerer.
func NewCustomerMetrics() *CustomerMetrics {
	return NewCustomerMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCustomerMetricsWithRegisterer registers the collectors with registerer.
// Collectors already registered under the same name are reused.
func NewCustomerMetricsWithRegisterer(registerer prometheus.Registerer) *CustomerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &CustomerMetrics{
		operations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Customer service operations by outcome",
		}, []string{"operation", "outcome"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of customer service operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"operation"})),
		cacheLookups: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Per-id cache lookups by result",
		}, []string{"result"})),
		notifications: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "New customer notifications by outcome",
		}, []string{"outcome"})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(C)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", already.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// ObserveOperation counts a finished service operation and records its duration.
func (m *CustomerMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a per-id cache lookup.
func (m *CustomerMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveNotification counts a notification attempt, e.g. "sent", "limited", "open", "failed".
func (m *CustomerMetrics) ObserveNotification(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every metric gathered by gatherer to path in the
// Prometheus text format, for node_exporter's textfile collector.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return prometheus.WriteToTextfile(path, gatherer)
}
