package formz

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key store events.
type MetricsProvider interface {
	// OnFieldRegistered is called when a controller attaches to a field.
	OnFieldRegistered(name string)

	// OnFieldUnregistered is called when a controller detaches from a field.
	OnFieldUnregistered(name string)

	// OnValidationPass is called after a whole-form validation pass.
	// Valid reports the aggregate outcome, duration the time taken.
	OnValidationPass(valid bool, duration time.Duration)

	// OnCrossFieldRun is called each time a cross-field validator evaluates.
	// Failed reports whether the validator produced an error.
	OnCrossFieldRun(validator int, failed bool)

	// OnNotifyBatch is called when a notification batch is delivered.
	// Size is the number of fields in the batch.
	OnNotifyBatch(size int)

	// OnDebounceCollapse is called when a pending debounced validation is
	// superseded by a newer call before its window elapsed.
	OnDebounceCollapse(name string)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnFieldRegistered(_ string)               {}
func (NoOpMetricsProvider) OnFieldUnregistered(_ string)             {}
func (NoOpMetricsProvider) OnValidationPass(_ bool, _ time.Duration) {}
func (NoOpMetricsProvider) OnCrossFieldRun(_ int, _ bool)            {}
func (NoOpMetricsProvider) OnNotifyBatch(_ int)                      {}
func (NoOpMetricsProvider) OnDebounceCollapse(_ string)              {}
