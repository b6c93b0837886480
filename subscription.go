package formz

import (
	"github.com/google/uuid"
)

// InterestKinds is a bitmask of change-kind categories an observer declares
// interest in.
type InterestKinds uint8

const (
	// InterestExternalValue matches user-visible value replacements.
	InterestExternalValue InterestKinds = 1 << iota

	// InterestInternalValue matches programmatic value replacements.
	InterestInternalValue

	// InterestError matches error transitions.
	InterestError

	// InterestAttribute matches attribute bag updates.
	InterestAttribute

	// InterestRegistration matches initializing transitions from registration
	// or value restore.
	InterestRegistration
)

// InterestAll matches every change-kind category.
const InterestAll = InterestExternalValue | InterestInternalValue |
	InterestError | InterestAttribute | InterestRegistration

// Has reports whether all bits in k are set.
func (i InterestKinds) Has(k InterestKinds) bool {
	return i&k == k
}

// matches reports whether a transition's change set intersects the declared
// categories.
func (i InterestKinds) matches(c ChangeKinds) bool {
	switch {
	case i.Has(InterestExternalValue) && c.Has(ChangeExternal):
		return true
	case i.Has(InterestInternalValue) && c.Has(ChangeInternal):
		return true
	case i.Has(InterestError) && c.Has(ChangeError):
		return true
	case i.Has(InterestAttribute) && c.Has(ChangeAttribute):
		return true
	case i.Has(InterestRegistration) && c.Has(ChangeInitializing):
		return true
	}
	return false
}

// Interest declares which fields and which change-kind categories should
// notify an observer. A nil Fields slice watches every field.
type Interest struct {
	Fields []string
	Kinds  InterestKinds
}

// watches reports whether the interest covers the named field.
func (i Interest) watches(name string) bool {
	if i.Fields == nil {
		return true
	}
	for _, f := range i.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Changes is the batch delivered to an observer: each field the observer
// watches that transitioned this tick, keyed by name. Observers watching many
// fields are notified once per batch, not once per field.
type Changes map[string]FieldState

type subscription struct {
	id       string
	interest Interest
	fn       func(Changes)
}

// filter returns the subset of a batch this subscription declared interest
// in, or nil if nothing matches.
func (sub *subscription) filter(batch map[string]FieldState) Changes {
	var out Changes
	for name, st := range batch {
		if !sub.interest.watches(name) || !sub.interest.Kinds.matches(st.Changes) {
			continue
		}
		if out == nil {
			out = make(Changes, len(batch))
		}
		out[name] = st
	}
	return out
}

// Subscribe registers an observer with an interest descriptor and returns a
// cancel function. Callbacks fire asynchronously relative to the mutation
// that caused them (next tick in async mode, before the mutating call returns
// in sync mode) and are batched per tick.
func (s *Store) Subscribe(interest Interest, fn func(Changes)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrStoreDisposed
	}
	if interest.Kinds == 0 {
		interest.Kinds = InterestAll
	}

	sub := &subscription{
		id:       uuid.NewString(),
		interest: interest,
		fn:       fn,
	}
	s.subs = append(s.subs, sub)

	id := sub.id
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}, nil
}

// OnValuesChanged notifies with the changed values whenever any field's value
// transitions.
func (s *Store) OnValuesChanged(fn func(values map[string]any)) (func(), error) {
	return s.Subscribe(Interest{Kinds: InterestExternalValue | InterestInternalValue}, func(ch Changes) {
		values := make(map[string]any, len(ch))
		for name, st := range ch {
			values[name] = st.Value
		}
		fn(values)
	})
}

// OnErrorsChanged notifies with the changed error messages whenever any
// field's error transitions. Cleared errors appear as empty strings.
func (s *Store) OnErrorsChanged(fn func(errors map[string]string)) (func(), error) {
	return s.Subscribe(Interest{Kinds: InterestError}, func(ch Changes) {
		errs := make(map[string]string, len(ch))
		for name, st := range ch {
			errs[name] = st.Error
		}
		fn(errs)
	})
}

// OnFieldRegistered notifies once per field as controllers attach (or retained
// values restore).
func (s *Store) OnFieldRegistered(fn func(name string, st FieldState)) (func(), error) {
	return s.Subscribe(Interest{Kinds: InterestRegistration}, func(ch Changes) {
		for name, st := range ch {
			fn(name, st)
		}
	})
}

// queueLocked merges a snapshot into the pending notification batch and, in
// async mode, schedules a flush. Change kinds accumulate when the same field
// transitions more than once in a batch. Caller holds s.mu.
func (s *Store) queueLocked(st FieldState) {
	if s.disposed {
		return
	}
	if prev, ok := s.pending[st.Name]; ok {
		st.Changes |= prev.Changes
	}
	s.pending[st.Name] = st
	if !s.syncMode && !s.flushScheduled {
		s.flushScheduled = true
		go s.flushAsync()
	}
}

// settle drains the pending batch synchronously. It only acts in sync mode;
// async mode delivers on the scheduled flush instead. Delivery may cause
// further mutations (sub-form bridges), so it loops until quiescent.
func (s *Store) settle() {
	if !s.syncMode {
		return
	}
	for {
		batch := s.takeBatch()
		if len(batch) == 0 {
			return
		}
		s.deliver(batch)
	}
}

// flushAsync delivers the pending batch on its own goroutine, one tick after
// the mutations that queued it. deliverMu keeps overlapping flushes from
// interleaving batches out of order.
func (s *Store) flushAsync() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.deliver(s.takeBatch())
}

// takeBatch swaps out the pending batch.
func (s *Store) takeBatch() map[string]FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushScheduled = false
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = make(map[string]FieldState)
	return batch
}

// deliver fans a batch out to interested subscriptions. Callbacks run outside
// the store lock so they may freely call back into the store.
func (s *Store) deliver(batch map[string]FieldState) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.OnNotifyBatch(len(batch))
	}
	for _, sub := range subs {
		if filtered := sub.filter(batch); len(filtered) > 0 {
			sub.fn(filtered)
		}
	}
}
