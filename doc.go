// Package formz provides a reactive field-state store for composable,
// dynamically registered data-entry forms.
//
// Independently created input components register themselves under a unique
// name in a shared Store, which tracks each field's value, validation error,
// and metadata, propagates cross-field validation without field components
// referencing each other, and notifies only the observers whose declared
// interest covers a change.
//
// # Store and Controllers
//
// A Store is one form session. Registering a field name yields a Controller
// owning that field's lifecycle:
//
//	store := formz.New()
//	age, err := store.Register("age",
//	    formz.WithInitialValue(0),
//	    formz.WithRules("min=18"),
//	)
//	age.SetValue(15) // local validators run synchronously
//
// Every mutation produces a fresh immutable FieldState snapshot tagged with
// the kinds of change that occurred; observers holding an older snapshot are
// unaffected by later transitions.
//
// # Validation
//
// Local validators run inline on external edits. Internal (programmatic)
// edits defer validation through a debounced Task so rapid churn collapses
// into one pass. Cross-field validators declare trigger names and target
// fields:
//
//	store.AddValidator(formz.CrossFieldValidator{
//	    Triggers: []string{"password", "re-password"},
//	    Check: func(values map[string]any) error {
//	        if values["password"] != values["re-password"] {
//	            return errors.New("mismatch")
//	        }
//	        return nil
//	    },
//	    Targets: []formz.Target{{
//	        Field:  "re-password",
//	        Format: func(err error) string { return err.Error() },
//	    }},
//	})
//
// Each target's error is arbitrated by owner index: a validator only writes
// an error slot that is unset or already its own, and only clears slots it
// owns. Independent validators therefore coexist on one target without one's
// "all clear" erasing another's still-active error.
//
// # Subscriptions
//
// Observers declare an interest set of field names and change-kind
// categories and receive one batched callback per tick:
//
//	cancel, _ := store.Subscribe(formz.Interest{
//	    Fields: []string{"age"},
//	    Kinds:  formz.InterestError,
//	}, func(ch formz.Changes) {
//	    render(ch["age"].Error)
//	})
//	defer cancel()
//
// # Nested sub-forms
//
// A field whose value is a child key→value map can bridge to an independent
// child Store via RegisterSubform. Child edits roll up into the parent field
// as the aggregate value map, child errors aggregate into the parent field's
// error slot as canonical JSON, and outside replacement of the parent value
// patches the child without looping back.
//
// # Sources
//
// External prefill documents feed the store through the Source seam:
//
//	binding, err := store.BindSource(ctx, formz.NewFileSource("draft.yaml"))
//
// # Testing
//
// WithSyncMode delivers notifications before the mutating call returns and
// holds debounced validation until FlushValidation, making tests
// deterministic. Combine with clockz.NewFakeClock via WithClock to drive
// real debounce windows without sleeping.
package formz
