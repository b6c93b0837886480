package formz

import "testing"

func TestChangeKinds_Has(t *testing.T) {
	c := ChangeExternal | ChangeError
	if !c.Has(ChangeExternal) || !c.Has(ChangeError) {
		t.Error("expected external and error bits set")
	}
	if c.Has(ChangeInternal) {
		t.Error("did not expect internal bit")
	}
	if !c.Has(ChangeExternal | ChangeError) {
		t.Error("expected combined mask to match")
	}
}

func TestChangeKinds_String(t *testing.T) {
	if got := ChangeKinds(0).String(); got != "none" {
		t.Errorf("expected none, got %s", got)
	}
	if got := (ChangeExternal | ChangeError).String(); got != "external|error" {
		t.Errorf("expected external|error, got %s", got)
	}
	if got := ChangeInitializing.String(); got != "initializing" {
		t.Errorf("expected initializing, got %s", got)
	}
}

func TestFieldState_Dirty(t *testing.T) {
	st := FieldState{Value: "a", InitialValue: "a"}
	if st.Dirty() {
		t.Error("expected clean field")
	}
	st.Value = "b"
	if !st.Dirty() {
		t.Error("expected dirty field")
	}
}

func TestFieldState_AttributeCopyOnWrite(t *testing.T) {
	st := FieldState{Attributes: map[string]any{"enabled": true}}
	next := st.withAttributes()
	next.Attributes["enabled"] = false

	if v, _ := st.Attribute("enabled"); v != true {
		t.Error("prior snapshot mutated by attribute write")
	}
	if v, _ := next.Attribute("enabled"); v != false {
		t.Error("new snapshot missing attribute write")
	}
}
