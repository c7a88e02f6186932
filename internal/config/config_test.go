package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/guardchain/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Load tests ---

func TestLoadBuildRun(t *testing.T) {
	path := writeConfig(t, `
name: inbound
on_error: deny
guards:
  - type: length
    max_chars: 20
  - type: uppercase
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	d := p.Validate(context.Background(), "hello", model.NewContext())
	if !d.Allowed || d.Action != model.ActionTransform {
		t.Fatalf("got %+v, want transform allow", d)
	}
	if d.Output != "HELLO" {
		t.Fatalf("output = %v, want HELLO", d.Output)
	}

	d = p.Validate(context.Background(), strings.Repeat("x", 21), model.NewContext())
	if d.Allowed {
		t.Fatal("expected over-length input to be denied")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PIPE_NAME", "expanded")
	path := writeConfig(t, `
name: ${PIPE_NAME}
guards:
  - type: secrets
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "expanded" {
		t.Fatalf("name = %q, want expanded", cfg.Name)
	}
}

// --- Validate tests ---

func TestValidateRejectsUnknownGuardType(t *testing.T) {
	path := writeConfig(t, `
name: bad
guards:
  - type: telepathy
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("err = %v, want unknown type error", err)
	}
}

func TestValidateRejectsEmptyGuards(t *testing.T) {
	path := writeConfig(t, "name: empty\nguards: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty guard list")
	}
}

func TestValidateRejectsBadOnError(t *testing.T) {
	cfg := &Config{Name: "p", OnError: "explode", Guards: []GuardConfig{{Type: "secrets"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown on_error policy")
	}
}

// --- Build tests ---

func TestBuildRejectsBadGuardRange(t *testing.T) {
	cfg := &Config{
		Name:   "p",
		Guards: []GuardConfig{{Type: "similarity", Threshold: 1.5, MaxHistory: 10}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := cfg.Build(); err == nil {
		t.Fatal("expected build error for out-of-range threshold")
	}
}

func TestBuildWiresFailFastOff(t *testing.T) {
	ff := false
	cfg := &Config{
		Name:     "p",
		FailFast: &ff,
		OnError:  "continue",
		Guards:   []GuardConfig{{Type: "length", MaxChars: 5}, {Type: "uppercase"}},
	}
	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// With fail_fast off and strict_deny off the transform guard still
	// runs after the deny, and the deny is downgraded at synthesis.
	d := p.Validate(context.Background(), "too long here", model.NewContext())
	if !d.Allowed || d.Action != model.ActionTransform {
		t.Fatalf("got %+v, want downgraded transform", d)
	}
	if len(d.Reasons) == 0 {
		t.Fatal("expected deny reason to be carried")
	}
	if d.Output != "TOO LONG HERE" {
		t.Fatalf("output = %v, want uppercased input", d.Output)
	}
}

func TestDefaultConfigBuilds(t *testing.T) {
	p, err := DefaultConfig().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Steps() != 5 {
		t.Fatalf("steps = %d, want 5", p.Steps())
	}

	d := p.Validate(context.Background(), "an ordinary request", model.NewContext(model.WithUserRole("tester")))
	if !d.Allowed {
		t.Fatalf("default chain denied clean input: %v", d.Reasons)
	}
}

func TestBuildAuditLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	cfg := &Config{
		Name:     "p",
		AuditLog: logPath,
		Guards:   []GuardConfig{{Type: "secrets"}},
	}
	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p.Validate(context.Background(), "hello", model.NewContext())

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(raw), `"pipeline":"p"`) {
		t.Fatalf("audit line missing pipeline field: %s", raw)
	}
}
