package formz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Store is the registry mapping field names to their state and controllers.
// One Store is one form session; nested forms hold their own Store reached
// through a Subform bridge. Stores are handles passed explicitly to fields
// and observers, never process-wide globals.
type Store struct {
	clock    clockz.Clock
	syncMode bool
	debounce time.Duration
	metrics  MetricsProvider

	mu              sync.Mutex
	deliverMu       sync.Mutex
	fields          map[string]*registeredField
	crossValidators []CrossFieldValidator
	subs            []*subscription
	pending         map[string]FieldState
	flushScheduled  bool
	disposed        bool
	configErr       error
}

// registeredField is the store's record for one field name. The controller is
// present while a live component is registered; savedValue survives across
// unregister/re-register so a field's value is preserved when its component
// is temporarily removed.
type registeredField struct {
	name         string
	ctrl         *Controller
	subform      *Subform
	initialValue any
	savedValue   any
	hasSaved     bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets a custom clock for debounce timers.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithSyncMode enables synchronous processing for testing. In sync mode
// notifications are delivered before the mutating call returns and debounced
// validation runs only through FlushValidation.
func WithSyncMode() Option {
	return func(s *Store) {
		s.syncMode = true
	}
}

// WithDebounce sets the default debounce window for deferred field validation.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounce = d
	}
}

// WithMetrics sets a metrics provider for store events.
func WithMetrics(m MetricsProvider) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates an empty form store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:    clockz.RealClock,
		debounce: DefaultDebounce,
		fields:   make(map[string]*registeredField),
		pending:  make(map[string]FieldState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FieldOption configures a field at registration time.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	initial    any
	validators []Validator
	attrs      map[string]any
	focus      FocusHandle
	window     time.Duration
}

// WithInitialValue sets the field's registration-time default.
func WithInitialValue(v any) FieldOption {
	return func(c *fieldConfig) {
		c.initial = v
	}
}

// WithValidators appends local validators, evaluated in order with the first
// failure winning.
func WithValidators(validators ...Validator) FieldOption {
	return func(c *fieldConfig) {
		c.validators = append(c.validators, validators...)
	}
}

// WithRules appends tag-based validators built on go-playground/validator.
func WithRules(tags ...string) FieldOption {
	return func(c *fieldConfig) {
		for _, tag := range tags {
			c.validators = append(c.validators, Rule(tag))
		}
	}
}

// WithAttributes seeds the field's attribute bag.
func WithAttributes(attrs map[string]any) FieldOption {
	return func(c *fieldConfig) {
		if c.attrs == nil {
			c.attrs = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			c.attrs[k] = v
		}
	}
}

// WithFocusHandle attaches the view component's focus contract.
func WithFocusHandle(h FocusHandle) FieldOption {
	return func(c *fieldConfig) {
		c.focus = h
	}
}

// WithDebounceWindow overrides the store's debounce window for this field.
// Externally-facing pickers typically use DefaultPickerDebounce.
func WithDebounceWindow(d time.Duration) FieldOption {
	return func(c *fieldConfig) {
		c.window = d
	}
}

// Register attaches a controller to a field name. If the name was previously
// known (unregistered-but-retained, or patched before any component existed),
// the controller is seeded from the retained value via an Initializing
// transition: never a user edit, never a cross-field trigger.
//
// Registering the reserved sentinel name or a name with a live controller
// fails fast.
func (s *Store) Register(name string, opts ...FieldOption) (*Controller, error) {
	cfg := &fieldConfig{window: 0}
	for _, opt := range opts {
		opt(cfg)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrStoreDisposed
	}
	if name == JustSelf || name == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	rf := s.fields[name]
	if rf != nil && rf.ctrl != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrFieldRegistered, name)
	}
	if rf == nil {
		rf = &registeredField{name: name}
		s.fields[name] = rf
	}

	initial := cfg.initial
	if rf.hasSaved {
		initial = rf.savedValue
	}
	rf.initialValue = initial

	window := cfg.window
	if window <= 0 {
		window = s.debounce
	}

	attrs := cfg.attrs
	if attrs == nil {
		attrs = make(map[string]any)
	}

	ctrl := &Controller{
		store:      s,
		name:       name,
		validators: cfg.validators,
		focus:      cfg.focus,
		task:       NewTask[bool](s.clock, window, s.syncMode),
		state: FieldState{
			Name:         name,
			Value:        initial,
			InitialValue: initial,
			ErrorOwner:   OwnerSelf,
			Attributes:   attrs,
			Changes:      ChangeInitializing,
		},
	}
	rf.ctrl = ctrl
	s.queueLocked(ctrl.state)
	s.mu.Unlock()

	capitan.Emit(context.Background(), FieldRegistered,
		KeyField.Field(name),
		KeyDebounce.Field(window),
	)
	if s.metrics != nil {
		s.metrics.OnFieldRegistered(name)
	}
	s.settle()
	return ctrl, nil
}

// Unregister detaches a field's controller. Unless discardValue is set, the
// last value is retained so a later registration under the same name restores
// it; discarding resets the record to its original initial value.
func (s *Store) Unregister(name string, discardValue bool) {
	s.mu.Lock()
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		s.mu.Unlock()
		return
	}
	ctrl := rf.ctrl
	if discardValue {
		rf.savedValue = rf.initialValue
	} else {
		rf.savedValue = ctrl.state.Value
	}
	rf.hasSaved = true
	rf.ctrl = nil
	ctrl.disposed = true
	sf := rf.subform
	rf.subform = nil
	s.mu.Unlock()

	ctrl.task.Stop()
	if sf != nil {
		sf.dispose()
	}

	capitan.Emit(context.Background(), FieldUnregistered,
		KeyField.Field(name),
	)
	if s.metrics != nil {
		s.metrics.OnFieldUnregistered(name)
	}
}

// Controller returns the live controller for a field, if any.
func (s *Store) Controller(name string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		return nil, false
	}
	return rf.ctrl, true
}

// Value returns a field's current value: the live controller's value, or the
// retained value if the component is unregistered. A name with neither is a
// valid empty state, not an error.
func (s *Store) Value(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.fields[name]
	if rf == nil {
		return nil, false
	}
	if rf.ctrl != nil {
		return rf.ctrl.state.Value, true
	}
	if rf.hasSaved {
		return rf.savedValue, true
	}
	return nil, false
}

// SetValue replaces a field's value as a user-visible edit. If no component
// is registered under the name, the value is retained for later registration.
func (s *Store) SetValue(name string, v any) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrStoreDisposed
	}
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		if rf == nil {
			rf = &registeredField{name: name}
			s.fields[name] = rf
		}
		rf.savedValue = v
		rf.hasSaved = true
		s.mu.Unlock()
		return nil
	}
	ctrl := rf.ctrl
	s.mu.Unlock()

	ctrl.SetValue(v)
	return nil
}

// Values returns a deep-copied snapshot of current values. Retained values of
// unregistered fields are included only when requested.
func (s *Store) Values(includeUnregistered bool) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valuesLocked(includeUnregistered)
}

// valuesLocked builds the value snapshot. Caller holds s.mu.
func (s *Store) valuesLocked(includeUnregistered bool) map[string]any {
	values := make(map[string]any, len(s.fields))
	for name, rf := range s.fields {
		switch {
		case rf.ctrl != nil:
			values[name] = cloneValue(rf.ctrl.state.Value)
		case includeUnregistered && rf.hasSaved:
			values[name] = cloneValue(rf.savedValue)
		}
	}
	return values
}

// PatchValues applies a bulk external set. Each key with a live controller is
// mutated through the normal external path with cross-field validation
// suppressed; one batched cross-field pass then runs over the union of
// touched names. Keys without a controller become retained values picked up
// by a later registration.
func (s *Store) PatchValues(values map[string]any) {
	s.patchValues(values, false)
}

// patchValues is the shared bulk-set path. internal routes live fields
// through the debounced internal path instead of the external one, which is
// how a parent→child sub-form push avoids looping back as a fresh
// child→parent propagation.
func (s *Store) patchValues(values map[string]any, internal bool) {
	if len(values) == 0 {
		return
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	type pushReq struct {
		sf    *Subform
		value any
	}
	var (
		changed   []string
		pushes    []pushReq
		deferred  []*Controller
		collapsed []string
	)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	for _, name := range names {
		v := values[name]
		rf := s.fields[name]
		if rf == nil {
			rf = &registeredField{name: name}
			s.fields[name] = rf
		}
		if rf.ctrl == nil {
			rf.savedValue = v
			rf.hasSaved = true
			continue
		}

		ctrl := rf.ctrl
		st := ctrl.state
		st.Value = v
		if internal {
			st.Changes = ChangeInternal
			ctrl.state = st
			s.queueLocked(st)
			if ctrl.task.Pending() {
				collapsed = append(collapsed, name)
			}
			deferred = append(deferred, ctrl)
		} else {
			st.Touched = true
			st.Changes = ChangeExternal
			ctrl.applyLocalResultLocked(&st)
			ctrl.state = st
			s.queueLocked(st)
			changed = append(changed, name)
		}

		if rf.subform != nil {
			pushes = append(pushes, pushReq{sf: rf.subform, value: v})
		}
	}
	s.runCrossFieldLocked(changed)
	s.mu.Unlock()

	for _, name := range collapsed {
		if s.metrics != nil {
			s.metrics.OnDebounceCollapse(name)
		}
	}
	for _, ctrl := range deferred {
		c := ctrl
		c.task.Run(func() (bool, error) {
			return c.runDeferredValidation(), nil
		})
	}
	for _, p := range pushes {
		p.sf.pushDown(p.value)
	}

	capitan.Emit(context.Background(), StorePatched,
		KeyFieldCount.Field(len(values)),
	)
	s.settle()
}

// Error returns a field's current error message, empty if valid or unknown.
func (s *Store) Error(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		return ""
	}
	return rf.ctrl.state.Error
}

// SetError overrides a field's error through its controller.
func (s *Store) SetError(name, msg string, force bool) {
	s.mu.Lock()
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		s.mu.Unlock()
		return
	}
	ctrl := rf.ctrl
	s.mu.Unlock()
	ctrl.SetError(msg, force)
}

// Errors returns the non-empty errors of all registered fields.
func (s *Store) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorsLocked()
}

// errorsLocked builds the error snapshot. Caller holds s.mu.
func (s *Store) errorsLocked() map[string]string {
	errs := make(map[string]string)
	for name, rf := range s.fields {
		if rf.ctrl != nil && rf.ctrl.state.Error != "" {
			errs[name] = rf.ctrl.state.Error
		}
	}
	return errs
}

// IsValid reports whether no registered field currently carries an error.
func (s *Store) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errorsLocked()) == 0
}

// Attribute returns a field's attribute.
func (s *Store) Attribute(name, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		return nil, false
	}
	return rf.ctrl.state.Attribute(key)
}

// SetAttribute sets a field's attribute through its controller.
func (s *Store) SetAttribute(name, key string, v any) {
	if ctrl, ok := s.Controller(name); ok {
		ctrl.SetAttribute(key, v)
	}
}

// PatchAttribute updates a field's attribute through a function of its prior
// value.
func (s *Store) PatchAttribute(name, key string, fn func(old any) any) {
	if ctrl, ok := s.Controller(name); ok {
		ctrl.PatchAttribute(key, fn)
	}
}

// Validate forces an external validation on every registered field, descends
// into nested sub-forms in the same pass, then runs the full cross-field
// pass. It reports whether the aggregate error set is empty afterwards, for
// the whole tree.
func (s *Store) Validate() bool {
	start := s.clock.Now()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	names := make([]string, 0, len(s.fields))
	for name, rf := range s.fields {
		if rf.ctrl != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var subforms []*Subform
	for _, name := range names {
		rf := s.fields[name]
		rf.ctrl.validateNowLocked(true)
		if rf.subform != nil {
			subforms = append(subforms, rf.subform)
		}
	}
	s.runCrossFieldLocked(names)
	s.mu.Unlock()

	for _, sf := range subforms {
		sf.validate()
	}
	s.settle()

	errCount := len(s.Errors())
	valid := errCount == 0
	capitan.Emit(context.Background(), ValidationPassCompleted,
		KeyFieldCount.Field(len(names)),
		KeyErrorCount.Field(errCount),
	)
	if s.metrics != nil {
		s.metrics.OnValidationPass(valid, s.clock.Since(start))
	}
	return valid
}

// ValidateField forces an external validation on one field, including its
// cross-field validators, and reports whether it ends up error-free.
func (s *Store) ValidateField(name string) bool {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	rf := s.fields[name]
	if rf == nil || rf.ctrl == nil {
		s.mu.Unlock()
		return true
	}
	rf.ctrl.validateNowLocked(true)
	s.runCrossFieldLocked([]string{name})
	sf := rf.subform
	s.mu.Unlock()

	if sf != nil {
		sf.validate()
	}
	s.settle()
	return s.Error(name) == ""
}

// LastConfigError returns the most recent configuration error produced by a
// panicking validator, or nil.
func (s *Store) LastConfigError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configErr
}

// Dispose tears the store down: every controller's debounced task is
// canceled, nested child stores are disposed recursively, and subscriptions
// are dropped. No mutation, validator run, or notification occurs after
// disposal begins; in-flight debounces resolve as cancellations.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	var ctrls []*Controller
	var subforms []*Subform
	for _, rf := range s.fields {
		if rf.ctrl != nil {
			rf.ctrl.disposed = true
			ctrls = append(ctrls, rf.ctrl)
		}
		if rf.subform != nil {
			subforms = append(subforms, rf.subform)
			rf.subform = nil
		}
	}
	s.subs = nil
	s.pending = make(map[string]FieldState)
	s.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.task.Stop()
	}
	for _, sf := range subforms {
		sf.dispose()
	}

	capitan.Emit(context.Background(), StoreDisposed)
}
