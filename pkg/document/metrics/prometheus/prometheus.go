// Package prommetrics provides a Prometheus implementation of document.Metrics.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Metrics implements document.Metrics using Prometheus.
type Metrics struct {
	savesTotal         *prometheus.CounterVec
	saveDuration       *prometheus.HistogramVec
	hooksTotal         *prometheus.CounterVec
	storageOpsTotal    *prometheus.CounterVec
	storageOpsDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		savesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "saves_total",
			Help:      "Total number of document save attempts by outcome.",
		}, []string{"collection", "status"}),

		saveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "save_duration_seconds",
			Help:      "Duration of document saves including pre hooks, in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection"}),

		hooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "hooks_total",
			Help:      "Total number of pre hook invocations by outcome.",
		}, []string{"collection", "event", "status"}),

		storageOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "storage_operations_total",
			Help:      "Total number of store operations.",
		}, []string{"operation", "status"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "document",
			Name:      "storage_operation_duration_seconds",
			Help:      "Duration of store operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordSave(collection, status string) {
	m.savesTotal.WithLabelValues(collection, status).Inc()
}

func (m *Metrics) RecordSaveDuration(collection string, duration time.Duration) {
	m.saveDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

func (m *Metrics) RecordHook(collection string, event document.Event, status string) {
	m.hooksTotal.WithLabelValues(collection, string(event), status).Inc()
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.storageOpsTotal.WithLabelValues(operation, status).Inc()
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) document.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
