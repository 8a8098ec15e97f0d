package prommetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

func TestPrometheusMetrics_NewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestPrometheusMetrics_RecordSave(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordSave("customers", "inserted")
	metrics.RecordSave("customers", "inserted")
	metrics.RecordSave("customers", "hook_failed")
	metrics.RecordSaveDuration("customers", 20*time.Millisecond)

	if got := testutil.ToFloat64(metrics.savesTotal.WithLabelValues("customers", "inserted")); got != 2 {
		t.Errorf("Expected 2 inserted saves, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.savesTotal.WithLabelValues("customers", "hook_failed")); got != 1 {
		t.Errorf("Expected 1 failed save, got %v", got)
	}
}

func TestPrometheusMetrics_RecordHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordHook("customers", document.EventSave, "success")

	if got := testutil.ToFloat64(metrics.hooksTotal.WithLabelValues("customers", "save", "success")); got != 1 {
		t.Errorf("Expected 1 hook invocation, got %v", got)
	}
}

func TestPrometheusMetrics_RecordStorageOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordStorageOperation("insert", 5*time.Millisecond, nil)
	metrics.RecordStorageOperation("insert", 5*time.Millisecond, errors.New("down"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var counter *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "test_document_storage_operations_total" {
			counter = mf
		}
	}
	if counter == nil {
		t.Fatal("Expected storage operations counter to be registered")
	}
	if len(counter.GetMetric()) != 2 {
		t.Errorf("Expected success and error series, got %d", len(counter.GetMetric()))
	}
}
