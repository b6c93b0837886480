package formz

import (
	"context"
	"encoding/json"

	"github.com/zoobzio/capitan"
)

// Subform wires a field whose value is a child key→value map to a fully
// independent child Store. Feedback loops are broken by update provenance:
// child edits reach the parent as bridge-tagged external updates, and parent
// replacements reach the child as internal updates, which the bridge's child
// subscription does not listen for.
type Subform struct {
	parent *Store
	name   string
	child  *Store
	cancel func()
}

// RegisterSubform registers a field backed by an independent child store. The
// child is seeded from the parent field's initial or retained value, child
// edits propagate up as the aggregate child value map, and non-empty child
// errors aggregate into the parent field's single error slot as canonical
// JSON.
//
// The child store's fields may be registered before or after bridging; seeded
// values for names without a controller are retained until one registers.
func (s *Store) RegisterSubform(name string, child *Store, opts ...FieldOption) (*Controller, error) {
	ctrl, err := s.Register(name, opts...)
	if err != nil {
		return nil, err
	}

	sf := &Subform{parent: s, name: name, child: child}

	s.mu.Lock()
	s.fields[name].subform = sf
	seed := ctrl.state.Value
	s.mu.Unlock()

	if m, ok := asValueMap(seed); ok && len(m) > 0 {
		sf.pushDown(m)
	}

	cancel, err := child.Subscribe(Interest{
		Kinds: InterestExternalValue | InterestError,
	}, sf.onChildChanges)
	if err != nil {
		return nil, err
	}
	sf.cancel = cancel

	capitan.Emit(context.Background(), SubformAttached,
		KeyField.Field(name),
	)
	return ctrl, nil
}

// Child returns the bridged child store for a sub-form field, if any.
func (s *Store) Child(name string) (*Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.fields[name]
	if rf == nil || rf.subform == nil {
		return nil, false
	}
	return rf.subform.child, true
}

// onChildChanges relays child transitions upward: external value edits push
// the aggregate child values into the parent field, and error transitions
// re-aggregate into the parent's error slot.
func (sf *Subform) onChildChanges(ch Changes) {
	var valueChanged, errorChanged bool
	for _, st := range ch {
		if st.Changes.Has(ChangeExternal) {
			valueChanged = true
		}
		if st.Changes.Has(ChangeError) {
			errorChanged = true
		}
	}

	if valueChanged {
		if ctrl, ok := sf.parent.Controller(sf.name); ok {
			ctrl.setValue(sf.child.Values(false), true)
		}
	}
	if errorChanged {
		sf.aggregateErrors()
	}
}

// aggregateErrors folds the child store's error map into the parent field.
// The parent field is never directly touched by a person, so the write is
// forced; the slot is owned by the field itself.
func (sf *Subform) aggregateErrors() {
	ctrl, ok := sf.parent.Controller(sf.name)
	if !ok {
		return
	}
	errs := sf.child.Errors()
	if len(errs) == 0 {
		ctrl.SetError("", true)
		return
	}
	ctrl.SetError(encodeErrorMap(errs), true)
}

// pushDown relays an outside replacement of the parent field's value into the
// child store as internal updates.
func (sf *Subform) pushDown(v any) {
	m, ok := asValueMap(v)
	if !ok {
		return
	}
	sf.child.patchValues(m, true)
}

// validate runs an external validation on the child store as part of the
// parent's pass and re-aggregates errors synchronously, so the parent's
// validity reflects the full tree before Validate returns.
func (sf *Subform) validate() {
	sf.child.Validate()
	sf.aggregateErrors()
}

// dispose detaches the bridge and disposes the child store.
func (sf *Subform) dispose() {
	if sf.cancel != nil {
		sf.cancel()
	}
	sf.child.Dispose()
}

// asValueMap coerces a parent field value into a child key→value map.
func asValueMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// encodeErrorMap renders a child error map as canonical JSON, e.g.
// {"city":"required"}. encoding/json sorts map keys, so the encoding is
// stable across passes.
func encodeErrorMap(errs map[string]string) string {
	data, err := json.Marshal(errs)
	if err != nil {
		return "invalid"
	}
	return string(data)
}
