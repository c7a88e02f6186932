package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func writePipelineConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func postValidate(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", bytes.NewBufferString(body))
	req.RemoteAddr = "192.0.2.1:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- validate handler tests ---

func TestValidateAllow(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: length
    max_chars: 100
`)
	s := newTestServer(t, Config{ConfigPath: path})

	rec := postValidate(t, s.Handler(), `{"data": "hello world"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var out struct {
		Allowed bool   `json:"allowed"`
		Action  string `json:"action"`
		Output  any    `json:"output"`
		AuditID string `json:"audit_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Allowed || out.Action != "allow" {
		t.Fatalf("got %+v, want allow", out)
	}
	if out.Output != "hello world" {
		t.Fatalf("output = %v, want passthrough", out.Output)
	}
	if out.AuditID == "" {
		t.Fatal("expected audit id in response")
	}
}

func TestValidateDeny(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: length
    max_chars: 5
`)
	s := newTestServer(t, Config{ConfigPath: path})

	rec := postValidate(t, s.Handler(), `{"data": "far too long for the limit"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (deny is a valid decision)", rec.Code)
	}
	var out struct {
		Allowed bool     `json:"allowed"`
		Reasons []string `json:"reasons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Allowed || len(out.Reasons) == 0 {
		t.Fatalf("got %+v, want deny with reasons", out)
	}
}

func TestValidateTransform(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: uppercase
`)
	s := newTestServer(t, Config{ConfigPath: path})

	rec := postValidate(t, s.Handler(), `{"data": "hello"}`)
	var out struct {
		Action string `json:"action"`
		Output any    `json:"output"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Action != "transform" || out.Output != "HELLO" {
		t.Fatalf("got %+v, want transform HELLO", out)
	}
}

func TestValidateRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()

	rec := postValidate(t, h, `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: status = %d, want 400", rec.Code)
	}

	rec = postValidate(t, h, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing data: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/validate", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status = %d, want 405", rec.Code)
	}
}

func TestValidateCarriesContextFields(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: rate_limit
    max_requests: 10
    window_seconds: 60
    block_seconds: 30
`)
	s := newTestServer(t, Config{ConfigPath: path})

	rec := postValidate(t, s.Handler(), `{"data": "x", "user_role": "analyst"}`)
	var out struct {
		Evidence map[string]any `json:"evidence"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Evidence["rate_key"] != "analyst" {
		t.Fatalf("rate_key = %v, want analyst", out.Evidence["rate_key"])
	}
}

// --- throttle tests ---

func TestThrottleReturns429(t *testing.T) {
	s := newTestServer(t, Config{RatePerSec: 1, Burst: 2})
	h := s.Handler()

	var got []int
	for i := 0; i < 3; i++ {
		rec := postValidate(t, h, `{"data": "ping"}`)
		got = append(got, rec.Code)
	}
	if got[0] != http.StatusOK || got[1] != http.StatusOK {
		t.Fatalf("first two requests should pass, got %v", got)
	}
	if got[2] != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", got[2])
	}
}

func TestThrottleIsPerClient(t *testing.T) {
	s := newTestServer(t, Config{RatePerSec: 1, Burst: 1})
	h := s.Handler()

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/validate",
			strings.NewReader(`{"data": "ping"}`))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("192.0.2.1:1000"); code != http.StatusOK {
		t.Fatalf("first client: %d", code)
	}
	if code := send("192.0.2.1:2000"); code != http.StatusTooManyRequests {
		t.Fatal("same host on a new port should share the bucket")
	}
	if code := send("192.0.2.2:1000"); code != http.StatusOK {
		t.Fatalf("different host should have its own bucket, got %d", code)
	}
}

// --- health and reload tests ---

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" || out["pipeline"] != "inbound" {
		t.Fatalf("got %v", out)
	}
}

func TestReloadSwapsPipeline(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: length
    max_chars: 5
`)
	s := newTestServer(t, Config{ConfigPath: path})

	rec := postValidate(t, s.Handler(), `{"data": "over the limit"}`)
	var out struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Allowed {
		t.Fatal("expected deny before reload")
	}

	if err := os.WriteFile(path, []byte(`
name: inbound
guards:
  - type: length
    max_chars: 100
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	rec = postValidate(t, s.Handler(), `{"data": "over the limit"}`)
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Allowed {
		t.Fatal("expected allow after reload raised the limit")
	}
}

func TestReloadKeepsOldPipelineOnBadConfig(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: secrets
`)
	s := newTestServer(t, Config{ConfigPath: path})

	if err := os.WriteFile(path, []byte("guards: [{type: telepathy}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload error for bad config")
	}

	// Old pipeline still serves.
	rec := postValidate(t, s.Handler(), `{"data": "still fine"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d after failed reload", rec.Code)
	}
}

func TestReloaderSurvivesRenamedSave(t *testing.T) {
	path := writePipelineConfig(t, `
name: inbound
guards:
  - type: length
    max_chars: 5
`)
	s := newTestServer(t, Config{ConfigPath: path})

	r, err := NewReloader(s, path)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Save the way editors do: write a sibling file, then rename it
	// over the watched path. The original inode is gone afterwards.
	tmp := filepath.Join(filepath.Dir(path), "pipeline.yaml.tmp")
	if err := os.WriteFile(tmp, []byte(`
name: inbound
guards:
  - type: length
    max_chars: 100
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := postValidate(t, s.Handler(), `{"data": "over the limit"}`)
		var out struct {
			Allowed bool `json:"allowed"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if out.Allowed {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("pipeline never picked up the renamed save")
}

func TestReloaderIgnoresSiblingFiles(t *testing.T) {
	path := writePipelineConfig(t, "name: p\nguards: [{type: secrets}]\n")
	s := newTestServer(t, Config{ConfigPath: path})

	r, err := NewReloader(s, path)
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	defer r.watcher.Close()

	sibling := filepath.Join(filepath.Dir(path), "notes.txt")
	r.handle(fsnotify.Event{Name: sibling, Op: fsnotify.Write})
	if r.debounce != nil {
		t.Fatal("write to a sibling file should not schedule a reload")
	}

	r.handle(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	if r.debounce != nil {
		t.Fatal("chmod on the watched file should not schedule a reload")
	}

	r.handle(fsnotify.Event{Name: path, Op: fsnotify.Write})
	if r.debounce == nil {
		t.Fatal("write to the watched file should schedule a reload")
	}
	r.stopTimer()
}
