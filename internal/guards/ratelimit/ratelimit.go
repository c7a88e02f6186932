// Package ratelimit provides the sliding-window rate limiter guard.
//
// Each key moves between two states: Open while under quota, and
// Blocked from the request that exceeds the quota until the block
// duration elapses. Unblocking discards the old window entirely, so
// counting starts fresh.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/guardchain/internal/model"
	"github.com/ppiankov/guardchain/internal/store"
)

// Config holds rate limiter construction parameters.
type Config struct {
	// MaxRequests is the quota per window.
	MaxRequests int
	// Window is the sliding window duration.
	Window time.Duration
	// KeyExtractor names the context field used as the rate key:
	// "audit_id", "user_role" (default), or any metadata key. An
	// unresolvable key falls back to the literal "default".
	KeyExtractor string
	// BlockDuration is how long a key stays blocked after exceeding
	// the quota.
	BlockDuration time.Duration
}

// Validate reports configuration faults. Called at construction so
// misconfiguration surfaces before traffic flows.
func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit: max requests must be positive, got %d", c.MaxRequests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %s", c.Window)
	}
	if c.BlockDuration <= 0 {
		return fmt.Errorf("ratelimit: block duration must be positive, got %s", c.BlockDuration)
	}
	return nil
}

// Guard enforces a per-key request quota within a sliding window.
type Guard struct {
	cfg   Config
	store store.RateStore
	now   func() time.Time
}

// Option customizes a Guard.
type Option func(*Guard)

// WithStore injects a rate state backend. Default is an in-memory
// store with idle-key eviction.
func WithStore(s store.RateStore) Option {
	return func(g *Guard) { g.store = s }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a rate limiter guard, validating the configuration.
func New(cfg Config, opts ...Option) (*Guard, error) {
	if cfg.KeyExtractor == "" {
		cfg.KeyExtractor = "user_role"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = store.NewMemoryRateStore()
	}
	return g, nil
}

func (g *Guard) Name() string { return "rate_limit" }

// Check applies the sliding-window algorithm for the key resolved from
// the request context. Store failures are reported as guard faults and
// absorbed at the pipeline boundary.
func (g *Guard) Check(ctx context.Context, data any, rc *model.Context) (model.Decision, error) {
	key := g.resolveKey(rc)
	now := g.now()

	st, _, err := g.store.Get(ctx, key)
	if err != nil {
		return model.Decision{}, err
	}

	if !st.BlockedUntil.IsZero() {
		if now.Before(st.BlockedUntil) {
			remaining := int(st.BlockedUntil.Sub(now).Seconds())
			return model.Deny(data,
				[]string{fmt.Sprintf("rate limit exceeded, blocked for %d more seconds", remaining)},
				model.WithAuditID(rc.AuditID),
				model.WithEvidence(map[string]any{
					"rate_key":          key,
					"blocked_until":     st.BlockedUntil.UTC(),
					"remaining_seconds": remaining,
				})), nil
		}
		// Block expired: back to Open with a fresh window. The request
		// that triggered the block does not count against the new one.
		st.BlockedUntil = time.Time{}
		st.Timestamps = nil
	}

	// Trim entries older than the window. A timestamp exactly at the
	// cutoff is kept (inclusive lower boundary).
	cutoff := now.Add(-g.cfg.Window)
	kept := st.Timestamps[:0]
	for _, ts := range st.Timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	st.Timestamps = kept

	if len(st.Timestamps) >= g.cfg.MaxRequests {
		st.BlockedUntil = now.Add(g.cfg.BlockDuration)
		if err := g.store.Put(ctx, key, st); err != nil {
			return model.Decision{}, err
		}
		return model.Deny(data,
			[]string{fmt.Sprintf("rate limit of %d requests per %s exceeded", g.cfg.MaxRequests, g.cfg.Window)},
			model.WithAuditID(rc.AuditID),
			model.WithEvidence(map[string]any{
				"rate_key":            key,
				"requests_in_window":  len(st.Timestamps),
				"max_requests":        g.cfg.MaxRequests,
				"window_seconds":      int(g.cfg.Window.Seconds()),
				"blocked_for_seconds": int(g.cfg.BlockDuration.Seconds()),
			})), nil
	}

	st.Timestamps = append(st.Timestamps, now)
	if err := g.store.Put(ctx, key, st); err != nil {
		return model.Decision{}, err
	}

	return model.Allow(data,
		model.WithAuditID(rc.AuditID),
		model.WithEvidence(map[string]any{
			"rate_key":           key,
			"requests_in_window": len(st.Timestamps),
			"requests_remaining": g.cfg.MaxRequests - len(st.Timestamps),
		})), nil
}

func (g *Guard) resolveKey(rc *model.Context) string {
	switch g.cfg.KeyExtractor {
	case "audit_id":
		return rc.AuditID
	case "user_role":
		if rc.UserRole != "" {
			return rc.UserRole
		}
		return "anonymous"
	}
	if v, ok := rc.Metadata[g.cfg.KeyExtractor]; ok {
		return fmt.Sprintf("%v", v)
	}
	return "default"
}
