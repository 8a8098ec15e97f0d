package customers

import "time"

// Metrics defines the interface for tracking customer synchronization.
// All methods are optional - a nil Metrics in Options falls back to NoopMetrics.
type Metrics interface {
	// RecordSync records the terminal state of one synchronization attempt.
	// state: "skipped", "completed" or "failed"
	RecordSync(state string)

	// RecordSyncDuration records how long a synchronization attempt took.
	RecordSyncDuration(state string, duration time.Duration)

	// RecordAPICall records an API call to the payment service.
	// status: HTTP status code as string (e.g. "200", "402") or "error" for transport failures
	RecordAPICall(endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordSync(_ string)                             {}
func (n *NoopMetrics) RecordSyncDuration(_ string, _ time.Duration)    {}
func (n *NoopMetrics) RecordAPICall(_, _ string)                       {}
func (n *NoopMetrics) RecordAPICallDuration(_ string, _ time.Duration) {}
