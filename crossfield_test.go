package formz

import (
	"errors"
	"testing"
)

// mismatchValidator wires the classic password confirmation check.
func mismatchValidator(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.AddValidator(CrossFieldValidator{
		Triggers: []string{"password", "re-password"},
		Check: func(values map[string]any) error {
			if values["password"] != values["re-password"] {
				return errors.New("mismatch")
			}
			return nil
		},
		Targets: []Target{{
			Field:  "re-password",
			Format: func(err error) string { return err.Error() },
		}},
	})
	if err != nil {
		t.Fatalf("AddValidator failed: %v", err)
	}
}

func TestCrossField_TargetedMismatch(t *testing.T) {
	store := New(WithSyncMode())
	pw, _ := store.Register("password")
	rpw, _ := store.Register("re-password")
	mismatchValidator(t, store)

	pw.SetValue("a")
	rpw.SetValue("b")

	if got := store.Errors()["re-password"]; got != "mismatch" {
		t.Fatalf("expected mismatch on re-password, got %q", got)
	}
	if store.Error("password") != "" {
		t.Error("trigger field without target must stay clean")
	}

	rpw.SetValue("a")
	if got := store.Error("re-password"); got != "" {
		t.Errorf("expected error cleared after matching edit, got %q", got)
	}
}

func TestCrossField_OwnershipPreventsClobber(t *testing.T) {
	store := New(WithSyncMode())
	a, _ := store.Register("a")
	b, _ := store.Register("b")
	if _, err := store.Register("x"); err != nil {
		t.Fatal(err)
	}

	format := func(err error) string { return err.Error() }
	idx0, _ := store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a"},
		Check: func(values map[string]any) error {
			if values["a"] == "bad" {
				return errors.New("a-error")
			}
			return nil
		},
		Targets: []Target{{Field: "x", Format: format}},
	})
	if _, err := store.AddValidator(CrossFieldValidator{
		Triggers: []string{"b"},
		Check: func(values map[string]any) error {
			if values["b"] == "bad" {
				return errors.New("b-error")
			}
			return nil
		},
		Targets: []Target{{Field: "x", Format: format}},
	}); err != nil {
		t.Fatal(err)
	}

	a.SetValue("bad")
	if got := store.Error("x"); got != "a-error" {
		t.Fatalf("expected a-error, got %q", got)
	}
	ctrl, _ := store.Controller("x")
	if owner := ctrl.State().ErrorOwner; owner != idx0 {
		t.Fatalf("expected owner %d, got %d", idx0, owner)
	}

	// The second validator failing must not steal the slot.
	b.SetValue("bad")
	if got := store.Error("x"); got != "a-error" {
		t.Errorf("validator 1 stole the error slot: %q", got)
	}

	// The second validator passing must not clear an error it doesn't own.
	b.SetValue("fine")
	if got := store.Error("x"); got != "a-error" {
		t.Errorf("validator 1 cleared an error it doesn't own: %q", got)
	}

	// Only the owner relinquishes its claim.
	a.SetValue("fine")
	if got := store.Error("x"); got != "" {
		t.Errorf("expected owner to clear its error, got %q", got)
	}
}

func TestCrossField_FirstErrorWinsPerPass(t *testing.T) {
	store := New(WithSyncMode())
	if _, err := store.Register("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Register("x"); err != nil {
		t.Fatal(err)
	}

	fail := func(msg string) func(map[string]any) error {
		return func(map[string]any) error { return errors.New(msg) }
	}
	format := func(err error) string { return err.Error() }
	store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a"},
		Check:    fail("first"),
		Targets:  []Target{{Field: "x", Format: format}},
	})
	store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a"},
		Check:    fail("second"),
		Targets:  []Target{{Field: "x", Format: format}},
	})

	store.SetValue("a", 1)
	if got := store.Error("x"); got != "first" {
		t.Errorf("expected first declared validator to win, got %q", got)
	}
}

func TestCrossField_JustSelfTargetsTriggerField(t *testing.T) {
	store := New(WithSyncMode())
	a, _ := store.Register("a")
	b, _ := store.Register("b")

	if _, err := store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a", "b"},
		Check: func(values map[string]any) error {
			if values["a"] == values["b"] {
				return errors.New("must differ")
			}
			return nil
		},
		Targets: []Target{{
			Field:  JustSelf,
			Format: func(err error) string { return err.Error() },
		}},
	}); err != nil {
		t.Fatal(err)
	}

	a.SetValue("same")
	b.SetValue("same")

	// The edited field carries the error, not its counterpart.
	if got := store.Error("b"); got != "must differ" {
		t.Errorf("expected error on edited field b, got %q", got)
	}
}

func TestCrossField_DeclarationFailsFast(t *testing.T) {
	store := New(WithSyncMode())

	cases := []struct {
		name string
		v    CrossFieldValidator
	}{
		{"no triggers", CrossFieldValidator{
			Check:   func(map[string]any) error { return nil },
			Targets: []Target{{Field: "x", Format: func(error) string { return "" }}},
		}},
		{"nil check", CrossFieldValidator{
			Triggers: []string{"a"},
			Targets:  []Target{{Field: "x", Format: func(error) string { return "" }}},
		}},
		{"target without formatter", CrossFieldValidator{
			Triggers: []string{"a"},
			Check:    func(map[string]any) error { return nil },
			Targets:  []Target{{Field: "x"}},
		}},
	}

	for _, tc := range cases {
		if _, err := store.AddValidator(tc.v); !errors.Is(err, ErrInvalidValidator) {
			t.Errorf("%s: expected ErrInvalidValidator, got %v", tc.name, err)
		}
	}
}

func TestCrossField_PanicBecomesConfigError(t *testing.T) {
	store := New(WithSyncMode())
	a, _ := store.Register("a")
	if _, err := store.Register("x"); err != nil {
		t.Fatal(err)
	}

	store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a"},
		Check:    func(map[string]any) error { panic("boom") },
		Targets:  []Target{{Field: "x", Format: func(err error) string { return err.Error() }}},
	})
	store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a"},
		Check: func(values map[string]any) error {
			return errors.New("still runs")
		},
		Targets: []Target{{Field: "x", Format: func(err error) string { return err.Error() }}},
	})

	a.SetValue(1)

	if store.LastConfigError() == nil {
		t.Error("expected panic recorded as configuration error")
	}
	if got := store.Error("x"); got != "still runs" {
		t.Errorf("pass corrupted by panicking validator, got %q", got)
	}
}

func TestCrossField_SkipsUnregisteredTargets(t *testing.T) {
	store := New(WithSyncMode())
	a, _ := store.Register("a")

	runs := 0
	store.AddValidator(CrossFieldValidator{
		Triggers: []string{"a"},
		Check: func(map[string]any) error {
			runs++
			return errors.New("nope")
		},
		Targets: []Target{{Field: "ghost", Format: func(err error) string { return err.Error() }}},
	})

	a.SetValue(1)
	if runs != 0 {
		t.Errorf("validator with no live targets must not run, got %d", runs)
	}
	if len(store.Errors()) != 0 {
		t.Errorf("unexpected errors: %v", store.Errors())
	}
}

func TestCrossField_SelfValidatorsFirstFailureWins(t *testing.T) {
	store := New(WithSyncMode())

	second := 0
	ctrl, _ := store.Register("v",
		WithValidators(
			func(any) error { return errors.New("first") },
			func(any) error { second++; return errors.New("second") },
		),
	)

	ctrl.SetValue("x")
	if got := store.Error("v"); got != "first" {
		t.Errorf("expected first validator to win, got %q", got)
	}
	if second != 0 {
		t.Errorf("remaining validators must be skipped after a failure, got %d runs", second)
	}
}
