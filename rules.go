package formz

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance.
var validate = validator.New()

// Validator checks one field's current value. A nil return means the value
// passes; a non-nil error carries the message to display. Validators run in
// declaration order and the first failure wins.
type Validator func(value any) error

// Rule builds a Validator from a go-playground/validator tag, for example
// "required", "email", or "min=1,max=120". The raw library error is used as
// the message; use RuleMessage for a fixed human-readable one.
func Rule(tag string) Validator {
	return func(value any) error {
		if err := validate.Var(value, tag); err != nil {
			return fmt.Errorf("%s: %w", tag, err)
		}
		return nil
	}
}

// RuleMessage builds a Validator from a validation tag with a fixed message
// returned on failure.
func RuleMessage(tag, msg string) Validator {
	return func(value any) error {
		if err := validate.Var(value, tag); err != nil {
			return errors.New(msg)
		}
		return nil
	}
}
