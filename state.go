package formz

import "strings"

// OwnerSelf is the sentinel error owner meaning the field's error was set by
// its own validators or a direct SetError call, not by a cross-field validator.
const OwnerSelf = -1

// ChangeKinds is a bitmask of transition tags describing what just changed in
// a field. The tags apply to the current transition only and are recomputed on
// every mutation; they are never carried over to the next snapshot.
type ChangeKinds uint8

const (
	// ChangeInitializing marks the first snapshot after registration or a
	// value restore. It occurs at most once per registration and never recurs.
	ChangeInitializing ChangeKinds = 1 << iota

	// ChangeExternal marks a user-visible value replacement.
	ChangeExternal

	// ChangeInternal marks a programmatic value replacement that is debounced
	// before it affects visible error state.
	ChangeInternal

	// ChangeError marks an error message transition.
	ChangeError

	// ChangeAttribute marks an attribute bag update.
	ChangeAttribute

	// ChangeExternalValidation marks a validation forced by an external
	// "validate all" request rather than a value edit.
	ChangeExternalValidation
)

// Has reports whether all bits in k are set.
func (c ChangeKinds) Has(k ChangeKinds) bool {
	return c&k == k
}

// String returns the string representation of the change set.
func (c ChangeKinds) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, e := range []struct {
		kind ChangeKinds
		name string
	}{
		{ChangeInitializing, "initializing"},
		{ChangeExternal, "external"},
		{ChangeInternal, "internal"},
		{ChangeError, "error"},
		{ChangeAttribute, "attribute"},
		{ChangeExternalValidation, "external-validation"},
	} {
		if c.Has(e.kind) {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}

// FieldState is an immutable snapshot of one field. Every mutation produces a
// fresh snapshot; observers holding a previous snapshot are unaffected by
// later changes.
type FieldState struct {
	// Name is the field's unique name within its store.
	Name string

	// Value is the current value, nil if never set.
	Value any

	// InitialValue is the value the field was registered (or restored) with.
	// Used to compute dirtiness.
	InitialValue any

	// Error is the current validation message. Empty means valid.
	Error string

	// ErrorOwner identifies which cross-field validator currently owns Error,
	// or OwnerSelf. A validator must not overwrite an error held by a
	// different owner.
	ErrorOwner int

	// Attributes holds arbitrary metadata unrelated to correctness. Callers
	// must agree on key names out of band.
	Attributes map[string]any

	// Touched becomes true on the first external value or error mutation and
	// never reverts while the field stays registered.
	Touched bool

	// Changes describes the transition that produced this snapshot.
	Changes ChangeKinds
}

// Dirty reports whether the current value differs from the initial value.
func (s FieldState) Dirty() bool {
	return !valueEqual(s.Value, s.InitialValue)
}

// Attribute returns the named attribute and whether it is present.
func (s FieldState) Attribute(key string) (any, bool) {
	v, ok := s.Attributes[key]
	return v, ok
}

// withAttributes returns a copy of the snapshot with a fresh attribute map so
// the snapshot held by observers stays immutable.
func (s FieldState) withAttributes() FieldState {
	attrs := make(map[string]any, len(s.Attributes)+1)
	for k, v := range s.Attributes {
		attrs[k] = v
	}
	s.Attributes = attrs
	return s
}
