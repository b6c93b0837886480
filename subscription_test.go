package formz

import (
	"testing"
)

func TestSubscribe_FieldScopedInterest(t *testing.T) {
	store := New(WithSyncMode())
	a, _ := store.Register("a")
	b, _ := store.Register("b")

	var batches []Changes
	cancel, err := store.Subscribe(Interest{
		Fields: []string{"a"},
		Kinds:  InterestExternalValue,
	}, func(ch Changes) {
		batches = append(batches, ch)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	b.SetValue("ignored")
	if len(batches) != 0 {
		t.Fatalf("observer notified for unwatched field: %v", batches)
	}

	a.SetValue("watched")
	if len(batches) != 1 {
		t.Fatalf("expected one notification, got %d", len(batches))
	}
	if st, ok := batches[0]["a"]; !ok || st.Value != "watched" {
		t.Errorf("unexpected batch contents: %v", batches[0])
	}
}

func TestSubscribe_KindFiltering(t *testing.T) {
	store := New(WithSyncMode())
	ctrl, _ := store.Register("a")

	errorBatches := 0
	cancel, _ := store.Subscribe(Interest{Kinds: InterestError}, func(Changes) {
		errorBatches++
	})
	defer cancel()

	ctrl.SetValue("no validators, no error change")
	if errorBatches != 0 {
		t.Fatal("value-only transition must not notify error observer")
	}

	ctrl.SetError("broken", true)
	if errorBatches != 1 {
		t.Fatalf("expected one error notification, got %d", errorBatches)
	}

	ctrl.SetAttribute("meta", 1)
	if errorBatches != 1 {
		t.Error("attribute transition must not notify error observer")
	}
}

func TestSubscribe_InternalVsExternalValueKinds(t *testing.T) {
	store := New(WithSyncMode())
	ctrl, _ := store.Register("a")

	var external, internal int
	c1, _ := store.Subscribe(Interest{Kinds: InterestExternalValue}, func(Changes) { external++ })
	defer c1()
	c2, _ := store.Subscribe(Interest{Kinds: InterestInternalValue}, func(Changes) { internal++ })
	defer c2()

	ctrl.SetValue("user edit")
	ctrl.SetValueInternal("relay")

	if external != 1 {
		t.Errorf("expected one external notification, got %d", external)
	}
	if internal != 1 {
		t.Errorf("expected one internal notification, got %d", internal)
	}
}

func TestSubscribe_BulkPatchNotifiesOncePerBatch(t *testing.T) {
	store := New(WithSyncMode())
	if _, err := store.Register("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Register("b"); err != nil {
		t.Fatal(err)
	}

	var batches []Changes
	cancel, _ := store.Subscribe(Interest{Kinds: InterestExternalValue}, func(ch Changes) {
		batches = append(batches, ch)
	})
	defer cancel()

	store.PatchValues(map[string]any{"a": 1, "b": 2})

	if len(batches) != 1 {
		t.Fatalf("expected one batched notification, got %d", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("expected both fields in the batch, got %v", batches[0])
	}
}

func TestSubscribe_CancelStopsNotifications(t *testing.T) {
	store := New(WithSyncMode())
	ctrl, _ := store.Register("a")

	calls := 0
	cancel, _ := store.Subscribe(Interest{}, func(Changes) { calls++ })

	ctrl.SetValue(1)
	before := calls
	cancel()
	ctrl.SetValue(2)

	if calls != before {
		t.Errorf("expected no notifications after cancel, got %d more", calls-before)
	}
}

func TestSubscribe_RegistrationInterest(t *testing.T) {
	store := New(WithSyncMode())

	var names []string
	cancel, _ := store.OnFieldRegistered(func(name string, st FieldState) {
		if !st.Changes.Has(ChangeInitializing) {
			t.Errorf("registration notification without initializing tag: %s", st.Changes)
		}
		names = append(names, name)
	})
	defer cancel()

	if _, err := store.Register("a"); err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("expected registration notification for a, got %v", names)
	}
}

func TestSubscribe_OnValuesChanged(t *testing.T) {
	store := New(WithSyncMode())
	ctrl, _ := store.Register("a")

	var last map[string]any
	cancel, _ := store.OnValuesChanged(func(values map[string]any) {
		last = values
	})
	defer cancel()

	ctrl.SetValue("v")
	if last == nil || last["a"] != "v" {
		t.Errorf("expected values callback with a=v, got %v", last)
	}
}

func TestSubscribe_OnErrorsChangedSeesClears(t *testing.T) {
	store := New(WithSyncMode())
	ctrl, _ := store.Register("a")

	var last map[string]string
	cancel, _ := store.OnErrorsChanged(func(errs map[string]string) {
		last = errs
	})
	defer cancel()

	ctrl.SetError("broken", true)
	if last["a"] != "broken" {
		t.Fatalf("expected error callback, got %v", last)
	}

	ctrl.SetError("", true)
	if v, ok := last["a"]; !ok || v != "" {
		t.Errorf("expected cleared error delivered as empty string, got %v", last)
	}
}

func TestSubscribe_DisposedStoreRejects(t *testing.T) {
	store := New(WithSyncMode())
	store.Dispose()

	if _, err := store.Subscribe(Interest{}, func(Changes) {}); err == nil {
		t.Error("expected error subscribing to disposed store")
	}
}
