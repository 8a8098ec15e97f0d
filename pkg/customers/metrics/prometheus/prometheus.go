// Package prommetrics provides a Prometheus implementation of customers.Metrics.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/stripecustomers/pkg/customers"
)

// Metrics implements customers.Metrics using Prometheus.
type Metrics struct {
	syncsTotal      *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	apiCallsTotal   *prometheus.CounterVec
	apiCallDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		syncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "customers",
			Name:      "syncs_total",
			Help:      "Total number of customer synchronization attempts by terminal state.",
		}, []string{"state"}),

		syncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "customers",
			Name:      "sync_duration_seconds",
			Help:      "Duration of customer synchronization attempts in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),

		apiCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "customers",
			Name:      "api_calls_total",
			Help:      "Total number of payment service API calls.",
		}, []string{"endpoint", "status"}),

		apiCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "customers",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of payment service API calls in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) RecordSync(state string) {
	m.syncsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) RecordSyncDuration(state string, duration time.Duration) {
	m.syncDuration.WithLabelValues(state).Observe(duration.Seconds())
}

func (m *Metrics) RecordAPICall(endpoint, status string) {
	m.apiCallsTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) RecordAPICallDuration(endpoint string, duration time.Duration) {
	m.apiCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) customers.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
