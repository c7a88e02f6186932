package model

import "testing"

// --- Action tests ---

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionAllow, ActionDeny, ActionTransform, ActionRetry} {
		if !a.Valid() {
			t.Errorf("expected %q to be valid", a)
		}
	}
	if Action("block").Valid() {
		t.Error("expected unknown action to be invalid")
	}
}

// --- Decision tests ---

func TestAllowDecision(t *testing.T) {
	d := Allow("hello")
	if !d.Allowed || d.Action != ActionAllow {
		t.Errorf("expected allowed allow decision, got %+v", d)
	}
	if d.Output != "hello" {
		t.Errorf("expected output passthrough, got %v", d.Output)
	}
	if d.AuditID == "" {
		t.Error("expected generated audit id")
	}
	if d.Reasons == nil || d.Evidence == nil {
		t.Error("expected non-nil reasons and evidence")
	}
}

func TestDenyDecision(t *testing.T) {
	d := Deny("x", []string{"nope"})
	if d.Allowed || d.Action != ActionDeny {
		t.Errorf("expected disallowed deny decision, got %+v", d)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != "nope" {
		t.Errorf("expected reasons [nope], got %v", d.Reasons)
	}
}

func TestTransformDecisionAllowed(t *testing.T) {
	d := Transform("NEW", []string{"rewrote"})
	if !d.Allowed || d.Action != ActionTransform {
		t.Errorf("expected allowed transform decision, got %+v", d)
	}
	if d.Output != "NEW" {
		t.Errorf("expected transformed output, got %v", d.Output)
	}
}

func TestRetryDecisionDisallowed(t *testing.T) {
	d := Retry("x", []string{"busy"})
	if d.Allowed || d.Action != ActionRetry {
		t.Errorf("expected disallowed retry decision, got %+v", d)
	}
}

func TestDecisionOptions(t *testing.T) {
	ev := map[string]any{"k": 1}
	d := Allow("x", WithEvidence(ev), WithAuditID("aud-1"))
	if d.AuditID != "aud-1" {
		t.Errorf("expected audit id aud-1, got %s", d.AuditID)
	}
	if d.Evidence["k"] != 1 {
		t.Errorf("expected evidence k=1, got %v", d.Evidence)
	}
}

// --- Context tests ---

func TestNewContextGeneratesAuditID(t *testing.T) {
	c := NewContext()
	if c.AuditID == "" {
		t.Error("expected generated audit id")
	}
	c2 := NewContext()
	if c.AuditID == c2.AuditID {
		t.Error("expected unique audit ids")
	}
}

func TestNewContextOptions(t *testing.T) {
	c := NewContext(
		WithModel("m1"),
		WithUserRole("admin"),
		WithPurpose("testing"),
		WithSeed(42),
		WithMetadata(map[string]any{"team": "blue"}),
	)
	if c.Model != "m1" || c.UserRole != "admin" || c.Purpose != "testing" {
		t.Errorf("unexpected context fields: %+v", c)
	}
	if c.Seed == nil || *c.Seed != 42 {
		t.Error("expected seed 42")
	}
	if c.Metadata["team"] != "blue" {
		t.Errorf("expected metadata team=blue, got %v", c.Metadata)
	}
}

func TestContextCopyMergesMetadata(t *testing.T) {
	c := NewContext(WithMetadata(map[string]any{"a": 1, "b": 2}))
	dup := c.Copy(WithMetadata(map[string]any{"b": 3, "c": 4}))

	if dup.Metadata["a"] != 1 || dup.Metadata["b"] != 3 || dup.Metadata["c"] != 4 {
		t.Errorf("expected merged metadata, got %v", dup.Metadata)
	}
	if c.Metadata["b"] != 2 {
		t.Error("expected original metadata untouched")
	}
	if dup.AuditID != c.AuditID {
		t.Error("expected audit id carried over on copy")
	}
}

func TestContextCopyOverrides(t *testing.T) {
	c := NewContext(WithUserRole("viewer"))
	dup := c.Copy(WithUserRole("editor"))
	if dup.UserRole != "editor" {
		t.Errorf("expected override to editor, got %s", dup.UserRole)
	}
	if c.UserRole != "viewer" {
		t.Error("expected original role untouched")
	}
}
