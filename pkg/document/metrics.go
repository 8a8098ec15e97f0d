package document

import "time"

// Metrics defines the interface for tracking document lifecycle operations.
type Metrics interface {
	// RecordSave records a save attempt.
	// status: "inserted", "replaced", "hook_failed", "invalid" or "error"
	RecordSave(collection, status string)

	// RecordSaveDuration records how long a save took, hooks included.
	RecordSaveDuration(collection string, duration time.Duration)

	// RecordHook records the outcome of a single pre hook invocation.
	// status: "success" or "error"
	RecordHook(collection string, event Event, status string)

	// RecordStorageOperation records the duration and status of a store call.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordSave(collection, status string)                                       {}
func (n *NoopMetrics) RecordSaveDuration(collection string, duration time.Duration)               {}
func (n *NoopMetrics) RecordHook(collection string, event Event, status string)                   {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
