package formz

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// JustSelf is the reserved target name meaning "the trigger field itself."
// Field names must not collide with it; Register rejects it.
const JustSelf = "_self"

// Target names a field a cross-field validator may write an error into, with
// a formatter that turns the validator's result into that field's message.
type Target struct {
	// Field is the target field name, or JustSelf for the trigger field.
	Field string

	// Format renders the validator's error for this target. Required.
	Format func(err error) string
}

// CrossFieldValidator re-runs whenever any of its trigger fields changes and
// routes its result into its target fields. Validators are evaluated in
// declaration order; their index in that order is the identity used for error
// ownership arbitration.
type CrossFieldValidator struct {
	// Triggers lists the field names whose changes re-run this validator.
	Triggers []string

	// Check evaluates the whole-form value snapshot. Nil means all targets
	// this validator owns may be cleared.
	Check func(values map[string]any) error

	// Targets lists the fields this validator writes errors into.
	Targets []Target
}

// triggeredBy reports whether a change to the named field re-runs v.
func (v CrossFieldValidator) triggeredBy(name string) bool {
	for _, t := range v.Triggers {
		if t == name {
			return true
		}
	}
	return false
}

// AddValidator declares a cross-field validator and returns its owner index.
// Declarations that cannot be resolved fail fast with ErrInvalidValidator.
func (s *Store) AddValidator(v CrossFieldValidator) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return 0, ErrStoreDisposed
	}
	if len(v.Triggers) == 0 {
		return 0, fmt.Errorf("%w: no trigger fields", ErrInvalidValidator)
	}
	if v.Check == nil {
		return 0, fmt.Errorf("%w: nil check function", ErrInvalidValidator)
	}
	for _, t := range v.Targets {
		if t.Field == "" {
			return 0, fmt.Errorf("%w: empty target field", ErrInvalidValidator)
		}
		if t.Format == nil {
			return 0, fmt.Errorf("%w: target %q has no message formatter", ErrInvalidValidator, t.Field)
		}
	}

	s.crossValidators = append(s.crossValidators, v)
	return len(s.crossValidators) - 1, nil
}

// runCrossFieldLocked re-runs every targeted validator triggered by one of the
// changed names. Caller holds s.mu.
//
// Per-pass rules, in validator declaration order:
//   - each validator runs at most once per pass, even if several of its
//     triggers changed;
//   - a target already claimed by an earlier validator this pass is skipped,
//     preserving first-error-wins per field;
//   - on failure, a target's error is written only if it is unset or already
//     owned by this validator's index;
//   - on success, only targets owned by this index are cleared. A different
//     owner's error is never touched.
func (s *Store) runCrossFieldLocked(changed []string) {
	if len(s.crossValidators) == 0 || len(changed) == 0 {
		return
	}

	failed := make(map[string]bool)
	seen := make(map[int]bool)

	for _, name := range changed {
		for idx, v := range s.crossValidators {
			if seen[idx] || !v.triggeredBy(name) {
				continue
			}
			seen[idx] = true
			s.evaluateLocked(idx, v, name, failed)
		}
	}
}

// evaluateLocked runs one targeted validator and routes its result.
// Caller holds s.mu.
func (s *Store) evaluateLocked(idx int, v CrossFieldValidator, trigger string, failed map[string]bool) {
	type resolved struct {
		name   string
		format func(error) string
	}
	var eligible []resolved
	for _, t := range v.Targets {
		name := t.Field
		if name == JustSelf {
			name = trigger
		}
		if failed[name] {
			continue
		}
		if rf := s.fields[name]; rf == nil || rf.ctrl == nil {
			continue
		}
		eligible = append(eligible, resolved{name: name, format: t.Format})
	}
	if len(eligible) == 0 {
		return
	}

	result, panicked := s.safeCheck(idx, v)
	if panicked {
		return
	}
	if s.metrics != nil {
		s.metrics.OnCrossFieldRun(idx, result != nil)
	}

	if result != nil {
		for _, t := range eligible {
			failed[t.name] = true
			ctrl := s.fields[t.name].ctrl
			st := ctrl.state
			if st.Error != "" && st.ErrorOwner != idx {
				continue
			}
			ctrl.applyErrorLocked(t.format(result), idx)
		}
		return
	}

	for _, t := range eligible {
		ctrl := s.fields[t.name].ctrl
		if ctrl.state.ErrorOwner == idx {
			ctrl.applyErrorLocked("", OwnerSelf)
		}
	}
}

// safeCheck invokes a validator's check function behind a panic boundary.
// A panicking validator is a configuration error, recorded and skipped so it
// cannot corrupt the rest of the pass.
func (s *Store) safeCheck(idx int, v CrossFieldValidator) (result error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err := fmt.Errorf("formz: cross-field validator %d panicked: %v", idx, r)
			s.configErr = err
			capitan.Emit(context.Background(), CrossFieldPanicked,
				KeyValidator.Field(idx),
				KeyError.Field(err.Error()),
			)
		}
	}()
	return v.Check(s.valuesLocked(false)), false
}
