package formz

import (
	"sync"
	"testing"
	"time"
)

// recordingMetrics captures provider callbacks for assertions.
type recordingMetrics struct {
	NoOpMetricsProvider

	mu         sync.Mutex
	registered []string
	passes     int
	lastValid  bool
	crossRuns  int
	batches    []int
	collapses  int
}

func (m *recordingMetrics) OnFieldRegistered(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, name)
}

func (m *recordingMetrics) OnValidationPass(valid bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes++
	m.lastValid = valid
}

func (m *recordingMetrics) OnCrossFieldRun(_ int, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crossRuns++
}

func (m *recordingMetrics) OnNotifyBatch(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, size)
}

func (m *recordingMetrics) OnDebounceCollapse(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collapses++
}

func TestMetrics_ProviderCallbacks(t *testing.T) {
	metrics := &recordingMetrics{}
	store := New(WithSyncMode(), WithMetrics(metrics))

	ctrl, _ := store.Register("a", WithValidators(required))
	if len(metrics.registered) != 1 || metrics.registered[0] != "a" {
		t.Errorf("expected registration callback, got %v", metrics.registered)
	}

	store.Validate()
	if metrics.passes != 1 || metrics.lastValid {
		t.Errorf("expected one invalid pass, got %d valid=%v", metrics.passes, metrics.lastValid)
	}

	ctrl.SetValueInternal("x")
	ctrl.SetValueInternal("y")
	if metrics.collapses != 1 {
		t.Errorf("expected one debounce collapse, got %d", metrics.collapses)
	}

	if len(metrics.batches) == 0 {
		t.Error("expected notification batches recorded")
	}
}

func TestNoOpMetricsProvider_DoesNotPanic(_ *testing.T) {
	var m NoOpMetricsProvider

	// These should not panic
	m.OnFieldRegistered("a")
	m.OnFieldUnregistered("a")
	m.OnValidationPass(true, 100*time.Millisecond)
	m.OnCrossFieldRun(0, false)
	m.OnNotifyBatch(3)
	m.OnDebounceCollapse("a")
}
