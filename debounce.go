package formz

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultDebounce is the default settle window for debounced field validation.
const DefaultDebounce = 200 * time.Millisecond

// DefaultPickerDebounce is the default settle window for externally-facing
// pickers, which tend to produce slower bursts than keystrokes.
const DefaultPickerDebounce = 300 * time.Millisecond

// Result carries the outcome of a debounced call.
type Result[R any] struct {
	Value R
	Err   error
}

// Task coalesces rapid repeated calls into one outstanding execution. Calling
// Run while a previous call's timer has not elapsed cancels that timer and
// reschedules; only one non-canceled completion is ever delivered per settled
// window. Superseded calls resolve with ErrCanceled and their functions never
// execute, so a result from a stale call is provably unobservable.
type Task[R any] struct {
	clock    clockz.Clock
	window   time.Duration
	syncMode bool

	mu      sync.Mutex
	pending *pendingCall[R]
	stopped bool
}

type pendingCall[R any] struct {
	fn     func() (R, error)
	done   chan Result[R]
	timer  clockz.Timer
	cancel chan struct{}
}

// NewTask creates a debounced task with the given settle window. In sync mode
// no timers run; pending calls execute only through Flush.
func NewTask[R any](clock clockz.Clock, window time.Duration, syncMode bool) *Task[R] {
	if clock == nil {
		clock = clockz.RealClock
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Task[R]{clock: clock, window: window, syncMode: syncMode}
}

// Run schedules fn to execute after the settle window, canceling any pending
// call. The returned channel delivers exactly one Result: the call's outcome,
// or ErrCanceled if it was superseded or the task was stopped.
func (t *Task[R]) Run(fn func() (R, error)) <-chan Result[R] {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelPendingLocked()

	p := &pendingCall[R]{
		fn:   fn,
		done: make(chan Result[R], 1),
	}

	if t.stopped {
		p.done <- Result[R]{Err: ErrCanceled}
		return p.done
	}

	t.pending = p
	if t.syncMode {
		return p.done
	}

	p.timer = t.clock.NewTimer(t.window)
	p.cancel = make(chan struct{})
	go t.await(p)
	return p.done
}

// await waits for the pending call's timer and executes it unless superseded.
func (t *Task[R]) await(p *pendingCall[R]) {
	select {
	case <-p.cancel:
		return
	case <-p.timer.C():
	}

	t.mu.Lock()
	if t.pending != p || t.stopped {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	v, err := p.fn()
	p.done <- Result[R]{Value: v, Err: err}
}

// Flush executes the pending call immediately, if any. Used in sync mode for
// deterministic tests and to settle state before reads that must observe it.
func (t *Task[R]) Flush() {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	if p != nil && p.timer != nil {
		p.timer.Stop()
	}
	if p != nil && p.cancel != nil {
		close(p.cancel)
	}
	stopped := t.stopped
	t.mu.Unlock()

	if p == nil {
		return
	}
	if stopped {
		p.done <- Result[R]{Err: ErrCanceled}
		return
	}
	v, err := p.fn()
	p.done <- Result[R]{Value: v, Err: err}
}

// Pending reports whether a call is waiting for its settle window.
func (t *Task[R]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Stop cancels any pending call with ErrCanceled and rejects future calls.
func (t *Task[R]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.cancelPendingLocked()
}

// cancelPendingLocked fails the pending call with ErrCanceled without
// executing it. Caller holds t.mu.
func (t *Task[R]) cancelPendingLocked() {
	p := t.pending
	if p == nil {
		return
	}
	t.pending = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.cancel != nil {
		close(p.cancel)
	}
	p.done <- Result[R]{Err: ErrCanceled}
}
