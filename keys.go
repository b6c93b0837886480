package formz

import "github.com/zoobzio/capitan"

// Field keys for formz events.
var (
	// KeyField is the name of the field an event concerns.
	KeyField = capitan.NewStringKey("field")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyValidator is the index of a cross-field validator.
	KeyValidator = capitan.NewIntKey("validator")

	// KeyFieldCount is the number of fields touched by a bulk operation.
	KeyFieldCount = capitan.NewIntKey("field_count")

	// KeyErrorCount is the number of fields left with errors after a pass.
	KeyErrorCount = capitan.NewIntKey("error_count")

	// KeyDebounce is the configured debounce window.
	KeyDebounce = capitan.NewDurationKey("debounce")
)
