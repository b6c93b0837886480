package formz

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// FocusHandle is the contract a view component exposes so programmatic
// attribute changes can release input focus before they land, avoiding races
// with in-flight user typing. The store never implements focus itself.
type FocusHandle interface {
	// HasFocus reports whether the field currently holds input focus.
	HasFocus() bool

	// Blur releases input focus.
	Blur()
}

// Controller owns one named field's lifecycle: value, error, attributes, and
// local validation. Controllers are created by Store.Register and share their
// store's lock; all transitions are atomic relative to other store mutations.
type Controller struct {
	store      *Store
	name       string
	validators []Validator
	focus      FocusHandle
	task       *Task[bool]

	// state and disposed are guarded by store.mu.
	state    FieldState
	disposed bool
}

// Name returns the field's registered name.
func (c *Controller) Name() string {
	return c.name
}

// State returns the field's current snapshot.
func (c *Controller) State() FieldState {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.state
}

// Value returns the field's current value.
func (c *Controller) Value() any {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.state.Value
}

// Error returns the field's current error message, empty if valid.
func (c *Controller) Error() string {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.state.Error
}

// Touched reports whether the field has seen an external value or error
// mutation since registration.
func (c *Controller) Touched() bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.state.Touched
}

// SetValue replaces the field's value as a user-visible edit: local validators
// run synchronously and the cross-field pass for this name runs in the same
// transition.
func (c *Controller) SetValue(v any) {
	c.setValue(v, false)
}

// setValue is the external update path. fromBridge suppresses the parent→child
// push when the value originated in the nested store itself.
func (c *Controller) setValue(v any, fromBridge bool) {
	s := c.store
	s.mu.Lock()
	if s.disposed || c.disposed {
		s.mu.Unlock()
		return
	}

	st := c.state
	st.Value = v
	st.Touched = true
	st.Changes = ChangeExternal
	c.applyLocalResultLocked(&st)
	c.state = st
	s.queueLocked(st)

	s.runCrossFieldLocked([]string{c.name})

	var push *Subform
	if rf := s.fields[c.name]; rf != nil && rf.subform != nil && !fromBridge {
		push = rf.subform
	}
	s.mu.Unlock()

	if push != nil {
		push.pushDown(v)
	}
	s.settle()
}

// SetValueInternal replaces the field's value as a programmatic relay. The
// visible error is not recomputed synchronously; a debounced validation pass
// is scheduled instead so rapid internal churn collapses into one run.
func (c *Controller) SetValueInternal(v any) {
	s := c.store
	s.mu.Lock()
	if s.disposed || c.disposed {
		s.mu.Unlock()
		return
	}

	st := c.state
	st.Value = v
	st.Changes = ChangeInternal
	c.state = st
	s.queueLocked(st)
	collapsed := c.task.Pending()
	s.mu.Unlock()

	if collapsed && s.metrics != nil {
		s.metrics.OnDebounceCollapse(c.name)
	}
	c.task.Run(func() (bool, error) {
		return c.runDeferredValidation(), nil
	})
	s.settle()
}

// runDeferredValidation is the debounced completion for internal updates:
// local validators plus the cross-field pass for this name, against whatever
// value is current when the window settles.
func (c *Controller) runDeferredValidation() bool {
	s := c.store
	s.mu.Lock()
	if s.disposed || c.disposed {
		s.mu.Unlock()
		return false
	}
	ok := c.validateNowLocked(false)
	s.runCrossFieldLocked([]string{c.name})
	s.mu.Unlock()
	s.settle()
	return ok
}

// FlushValidation executes any pending debounced validation immediately.
// In sync mode this is the only way deferred validation runs.
func (c *Controller) FlushValidation() {
	c.task.Flush()
}

// SetError overrides the field's error directly. The override is respected
// only if the field is touched or force is set, and never clobbers an error
// currently owned by a cross-field validator unless forced.
func (c *Controller) SetError(msg string, force bool) {
	s := c.store
	s.mu.Lock()
	if s.disposed || c.disposed {
		s.mu.Unlock()
		return
	}
	if !force {
		if !c.state.Touched {
			s.mu.Unlock()
			return
		}
		if c.state.ErrorOwner != OwnerSelf {
			s.mu.Unlock()
			return
		}
	}

	st := c.state
	st.Touched = true
	st.Changes = 0
	if st.Error != msg || st.ErrorOwner != OwnerSelf {
		st.Changes |= ChangeError
	}
	st.Error = msg
	st.ErrorOwner = OwnerSelf
	c.state = st
	if st.Changes != 0 {
		s.queueLocked(st)
	}
	s.mu.Unlock()
	s.settle()
}

// Attribute returns the named attribute and whether it is present.
func (c *Controller) Attribute(key string) (any, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.state.Attribute(key)
}

// SetAttribute merges a metadata entry into the attribute bag without touching
// value or error. If a focus handle is attached and reports focus, it is
// blurred first.
func (c *Controller) SetAttribute(key string, v any) {
	if c.focus != nil && c.focus.HasFocus() {
		c.focus.Blur()
	}

	s := c.store
	s.mu.Lock()
	if s.disposed || c.disposed {
		s.mu.Unlock()
		return
	}
	st := c.state.withAttributes()
	st.Attributes[key] = v
	st.Changes = ChangeAttribute
	c.state = st
	s.queueLocked(st)
	s.mu.Unlock()
	s.settle()
}

// PatchAttribute updates an attribute through a function of its prior value.
func (c *Controller) PatchAttribute(key string, fn func(old any) any) {
	c.store.mu.Lock()
	old := c.state.Attributes[key]
	c.store.mu.Unlock()
	c.SetAttribute(key, fn(old))
}

// Validate forces evaluation of the field's own validators against the
// current value and reports whether the field is error-free afterwards.
// When external is true the transition is tagged so downstream consumers know
// the request came from a user-visible validate-all action.
func (c *Controller) Validate(external bool) bool {
	s := c.store
	s.mu.Lock()
	if s.disposed || c.disposed {
		s.mu.Unlock()
		return false
	}
	ok := c.validateNowLocked(external)
	s.mu.Unlock()
	s.settle()
	return ok
}

// validateNowLocked runs local validators and applies the error transition.
// Caller holds store.mu.
func (c *Controller) validateNowLocked(external bool) bool {
	st := c.state
	st.Changes = 0
	if external {
		st.Changes |= ChangeExternalValidation
	}
	c.applyLocalResultLocked(&st)
	c.state = st
	if st.Changes != 0 {
		c.store.queueLocked(st)
	}
	return st.Error == ""
}

// applyLocalResultLocked evaluates local validators against st.Value and
// folds the outcome into st. A field with no validators always passes locally
// but still enters the cross-field pass. A failure claims the error slot for
// the field itself; a pass clears the error only when the field owns it.
func (c *Controller) applyLocalResultLocked(st *FieldState) {
	msg := ""
	for i, v := range c.validators {
		err, panicked := c.safeValidate(i, v, st.Value)
		if panicked {
			continue
		}
		if err != nil {
			msg = err.Error()
			break
		}
	}

	if msg != "" {
		if st.Error != msg || st.ErrorOwner != OwnerSelf {
			st.Changes |= ChangeError
		}
		st.Error = msg
		st.ErrorOwner = OwnerSelf
		return
	}
	if st.Error != "" && st.ErrorOwner == OwnerSelf {
		st.Error = ""
		st.Changes |= ChangeError
	}
}

// safeValidate invokes a local validator behind a panic boundary. A panicking
// validator is a configuration error, recorded and skipped.
func (c *Controller) safeValidate(idx int, v Validator, value any) (result error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err := fmt.Errorf("formz: validator %d on field %q panicked: %v", idx, c.name, r)
			c.store.configErr = err
			capitan.Emit(context.Background(), CrossFieldPanicked,
				KeyField.Field(c.name),
				KeyError.Field(err.Error()),
			)
		}
	}()
	return v(value), false
}

// applyErrorLocked writes an error transition on behalf of the store's
// cross-field routing or a sub-form bridge. Caller holds store.mu and has
// already settled ownership.
func (c *Controller) applyErrorLocked(msg string, owner int) {
	st := c.state
	if st.Error == msg && st.ErrorOwner == owner {
		return
	}
	st.Error = msg
	st.ErrorOwner = owner
	st.Changes = ChangeError
	c.state = st
	c.store.queueLocked(st)
}

// Dispose cancels the controller's debounced task and detaches it from the
// store's mutation paths. In-flight debounces resolve as cancellations.
func (c *Controller) Dispose() {
	c.store.mu.Lock()
	if c.disposed {
		c.store.mu.Unlock()
		return
	}
	c.disposed = true
	c.store.mu.Unlock()
	c.task.Stop()
}
