// Package server exposes a validation pipeline over HTTP with per-client
// throttling and config hot-reload.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/guardchain/internal/config"
	"github.com/ppiankov/guardchain/internal/model"
	"github.com/ppiankov/guardchain/internal/pipeline"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr       string
	ConfigPath string  // pipeline definition; empty means the built-in default
	RatePerSec float64 // per-client request rate, 0 disables throttling
	Burst      int
}

// Server validates requests against a hot-swappable pipeline.
type Server struct {
	mu       sync.RWMutex
	pipe     *pipeline.Pipeline
	cfg      Config
	limiters *clientLimiters

	httpServer *http.Server
}

// New creates a server with the pipeline built from the configured
// definition file, or the built-in default chain when no path is given.
func New(cfg Config) (*Server, error) {
	pipe, err := buildPipeline(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	s := &Server{pipe: pipe, cfg: cfg}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RatePerSec)
			if burst < 1 {
				burst = 1
			}
		}
		s.limiters = newClientLimiters(cfg.RatePerSec, burst)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func buildPipeline(path string) (*pipeline.Pipeline, error) {
	if path == "" {
		return config.DefaultConfig().Build()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

// Handler returns the HTTP handler. Exposed separately for testing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/validate", s.handleValidate)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Serve starts the HTTP server. Blocks until shut down.
func (s *Server) Serve() error {
	if s.limiters != nil {
		s.limiters.start()
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiters != nil {
		s.limiters.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// Reload rebuilds the pipeline from the definition file and swaps it in
// atomically. Called by the hot-reloader on file change.
func (s *Server) Reload() error {
	pipe, err := buildPipeline(s.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("server: reload: %w", err)
	}
	s.mu.Lock()
	s.pipe = pipe
	s.mu.Unlock()
	return nil
}

// validateRequest is the POST /v1/validate body.
type validateRequest struct {
	Data     any            `json:"data"`
	Model    string         `json:"model,omitempty"`
	UserRole string         `json:"user_role,omitempty"`
	Purpose  string         `json:"purpose,omitempty"`
	TraceID  string         `json:"trace_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.limiters != nil && !s.limiters.allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Data == nil {
		writeError(w, http.StatusBadRequest, "missing data field")
		return
	}

	opts := []model.ContextOption{}
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}
	if req.UserRole != "" {
		opts = append(opts, model.WithUserRole(req.UserRole))
	}
	if req.Purpose != "" {
		opts = append(opts, model.WithPurpose(req.Purpose))
	}
	if req.TraceID != "" {
		opts = append(opts, model.WithTraceID(req.TraceID))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, model.WithMetadata(req.Metadata))
	}
	rc := model.NewContext(opts...)

	s.mu.RLock()
	pipe := s.pipe
	s.mu.RUnlock()

	decision := pipe.Validate(r.Context(), req.Data, rc)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(decision); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pipe := s.pipe
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"pipeline": pipe.Name(),
		"guards":   pipe.Steps(),
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// clientKey identifies the caller for throttling. Host only, so a
// client reconnecting from an ephemeral port keeps its bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
