package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "decisions.jsonl")
}

func TestRecordAndVerify(t *testing.T) {
	path := tempLogPath(t)
	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entries := []Entry{
		{AuditID: "a1", Pipeline: "inbound", Action: "allow", Allowed: true},
		{AuditID: "a2", Pipeline: "inbound", Action: "deny", Allowed: false, Reasons: []string{"blocked"}},
		{AuditID: "a3", Pipeline: "inbound", Action: "transform", Allowed: true},
	}
	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	result := Verify(path)
	if !result.Valid {
		t.Errorf("expected valid chain, got error %q at line %d", result.Error, result.ErrorLine)
	}
	if result.Lines != 3 {
		t.Errorf("expected 3 lines, got %d", result.Lines)
	}
}

func TestChainResumesAcrossReopen(t *testing.T) {
	path := tempLogPath(t)

	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := log.Record(Entry{AuditID: "a1", Pipeline: "p", Action: "allow", Allowed: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	log.Close()

	log2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := log2.Record(Entry{AuditID: "a2", Pipeline: "p", Action: "deny", Allowed: false}); err != nil {
		t.Fatalf("record after reopen: %v", err)
	}
	log2.Close()

	result := Verify(path)
	if !result.Valid {
		t.Errorf("expected intact chain after reopen, got %q at line %d", result.Error, result.ErrorLine)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := tempLogPath(t)

	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	log.Record(Entry{AuditID: "a1", Pipeline: "p", Action: "allow", Allowed: true})
	log.Record(Entry{AuditID: "a2", Pipeline: "p", Action: "allow", Allowed: true})
	log.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tampered := strings.Replace(string(raw), `"a1"`, `"a9"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := Verify(path)
	if result.Valid {
		t.Error("expected tampered chain to fail verification")
	}
	if result.ErrorLine != 2 {
		t.Errorf("expected break at line 2, got %d", result.ErrorLine)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	result := Verify(filepath.Join(t.TempDir(), "nope.jsonl"))
	if result.Valid {
		t.Error("expected invalid result for missing file")
	}
}
