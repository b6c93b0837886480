package formz

import "github.com/zoobzio/capitan"

// Field lifecycle signals.
var (
	// FieldRegistered is emitted when a controller attaches to a field name.
	FieldRegistered = capitan.NewSignal(
		"formz.field.registered",
		"Field controller registered",
	)

	// FieldUnregistered is emitted when a controller detaches from a field.
	FieldUnregistered = capitan.NewSignal(
		"formz.field.unregistered",
		"Field controller unregistered",
	)

	// SubformAttached is emitted when a nested child store is bridged into a
	// parent field.
	SubformAttached = capitan.NewSignal(
		"formz.subform.attached",
		"Nested sub-form bridged to parent field",
	)
)

// Validation signals.
var (
	// ValidationPassCompleted is emitted after a whole-form validation pass.
	ValidationPassCompleted = capitan.NewSignal(
		"formz.validation.pass.completed",
		"Whole-form validation pass completed",
	)

	// CrossFieldPanicked is emitted when a cross-field validator panics and is
	// converted into a configuration error instead of corrupting the pass.
	CrossFieldPanicked = capitan.NewSignal(
		"formz.validation.crossfield.panicked",
		"Cross-field validator panicked",
	)
)

// Store lifecycle signals.
var (
	// StorePatched is emitted after a bulk value patch is applied.
	StorePatched = capitan.NewSignal(
		"formz.store.patched",
		"Bulk value patch applied",
	)

	// StoreDisposed is emitted when a store and its controllers are torn down.
	StoreDisposed = capitan.NewSignal(
		"formz.store.disposed",
		"Store disposed",
	)
)

// Value source signals.
var (
	// SourceBound is emitted when an external value source starts feeding the
	// store.
	SourceBound = capitan.NewSignal(
		"formz.source.bound",
		"External value source bound",
	)

	// SourceRejected is emitted when a source emission fails to decode and is
	// discarded, retaining the previous values.
	SourceRejected = capitan.NewSignal(
		"formz.source.rejected",
		"Source emission failed to decode",
	)
)
