package formz

import "errors"

// Configuration errors are programmer mistakes surfaced at registration or
// validator-declaration time. They fail fast rather than degrading silently.
var (
	// ErrReservedName is returned when registering a field under the name
	// reserved for self-referential validator targets.
	ErrReservedName = errors.New("formz: field name is reserved")

	// ErrFieldRegistered is returned when registering a name that already has
	// a live controller attached.
	ErrFieldRegistered = errors.New("formz: field already registered")

	// ErrStoreDisposed is returned by operations on a disposed store.
	ErrStoreDisposed = errors.New("formz: store disposed")

	// ErrInvalidValidator is returned when a cross-field validator declaration
	// cannot be resolved: no triggers, nil check function, or a target without
	// a message formatter.
	ErrInvalidValidator = errors.New("formz: invalid cross-field validator")
)

// ErrCanceled is delivered by a Task when a pending call is superseded by a
// newer Run or stopped during disposal. Callers must treat it as "ignore, the
// field was torn down," never as a validation failure to display.
var ErrCanceled = errors.New("formz: debounced call canceled")
