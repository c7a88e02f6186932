// Package similarity provides the duplicate and near-duplicate content
// detector guard. Content is fingerprinted twice: an exact hash of the
// raw text and a hash of the normalized text. Exact matching is always
// active; fuzzy matching compares normalized token sets against every
// stored item and takes the maximum Jaccard similarity.
package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ppiankov/guardchain/internal/model"
	"github.com/ppiankov/guardchain/internal/store"
)

// DetectAction selects what a detected duplicate does to the request.
type DetectAction string

const (
	// ActDeny rejects duplicate submissions.
	ActDeny DetectAction = "deny"
	// ActFlag lets duplicates through, recording the match as evidence.
	ActFlag DetectAction = "flag"
)

// Valid reports whether a is a known detect action.
func (a DetectAction) Valid() bool {
	return a == ActDeny || a == ActFlag
}

// Config holds duplicate detector construction parameters.
type Config struct {
	// Threshold is the minimum Jaccard similarity treated as a
	// near-duplicate, in [0,1].
	Threshold float64
	// Action is applied when a duplicate is detected.
	Action DetectAction
	// MaxHistory bounds the stored content history; the oldest entry
	// is evicted first.
	MaxHistory int
	// Fuzzy enables near-duplicate matching. Exact-hash matching is
	// always active.
	Fuzzy bool
}

// Validate reports configuration faults.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("similarity: threshold must be in [0,1], got %g", c.Threshold)
	}
	if !c.Action.Valid() {
		return fmt.Errorf("similarity: unknown action %q", c.Action)
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("similarity: max history must be positive, got %d", c.MaxHistory)
	}
	return nil
}

// Guard detects exact and near-duplicate content against a bounded
// history.
type Guard struct {
	cfg   Config
	store store.FingerprintStore
	now   func() time.Time
}

// Option customizes a Guard.
type Option func(*Guard)

// WithStore injects a fingerprint backend. Default is a bounded
// in-memory store sized to MaxHistory.
func WithStore(s store.FingerprintStore) Option {
	return func(g *Guard) { g.store = s }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a duplicate detector guard, validating the configuration.
func New(cfg Config, opts ...Option) (*Guard, error) {
	if cfg.Action == "" {
		cfg.Action = ActFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = store.NewMemoryFingerprintStore(cfg.MaxHistory)
	}
	return g, nil
}

func (g *Guard) Name() string { return "similarity" }

// Check fingerprints the input and compares it against the stored
// history. A near-duplicate is still stored so later submissions can be
// compared against it; an exact duplicate is not re-stored.
func (g *Guard) Check(ctx context.Context, data any, rc *model.Context) (model.Decision, error) {
	text := fmt.Sprintf("%v", data)

	contentHash := hashText(text)
	normalized := Normalize(text)
	normalizedHash := hashText(normalized)

	evidence := map[string]any{
		"content_hash":      contentHash,
		"normalized_hash":   normalizedHash,
		"text_length":       len(text),
		"normalized_length": len(normalized),
	}

	prev, exact, err := g.store.GetExact(ctx, contentHash)
	if err != nil {
		return model.Decision{}, err
	}
	if exact {
		evidence["duplicate_type"] = "exact"
		evidence["previous_audit_id"] = prev.AuditID
		evidence["previous_timestamp"] = prev.StoredAt.UTC()
		return g.detected(data, []string{"exact duplicate content detected"}, evidence, rc), nil
	}

	if g.cfg.Fuzzy && normalized != "" {
		bestHash, bestScore, err := g.scanHistory(ctx, normalized)
		if err != nil {
			return model.Decision{}, err
		}
		if bestScore >= g.cfg.Threshold && bestHash != "" {
			evidence["duplicate_type"] = "fuzzy"
			evidence["similarity_score"] = bestScore
			evidence["similar_hash"] = bestHash
			if match, ok, err := g.store.ByNormalized(ctx, bestHash); err == nil && ok {
				evidence["similar_audit_id"] = match.AuditID
			}
			decision := g.detected(data,
				[]string{fmt.Sprintf("similar content detected (similarity: %.2f)", bestScore)},
				evidence, rc)
			if err := g.storeContent(ctx, contentHash, normalizedHash, normalized, rc); err != nil {
				return model.Decision{}, err
			}
			return decision, nil
		}
	}

	if err := g.storeContent(ctx, contentHash, normalizedHash, normalized, rc); err != nil {
		return model.Decision{}, err
	}
	return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence)), nil
}

// scanHistory compares the normalized text against every stored item
// and returns the best match. Linear by design: history is bounded by
// MaxHistory, and the selection rule is maximum similarity across all
// of it.
func (g *Guard) scanHistory(ctx context.Context, normalized string) (string, float64, error) {
	entries, err := g.store.Normalized(ctx)
	if err != nil {
		return "", 0, err
	}
	var bestHash string
	bestScore := 0.0
	for _, entry := range entries {
		score := Jaccard(normalized, entry.Text)
		if score > bestScore {
			bestScore = score
			bestHash = entry.Hash
		}
	}
	return bestHash, bestScore, nil
}

func (g *Guard) storeContent(ctx context.Context, contentHash, normalizedHash, normalized string, rc *model.Context) error {
	return g.store.Put(ctx, store.Fingerprint{
		ContentHash:    contentHash,
		NormalizedHash: normalizedHash,
		NormalizedText: normalized,
		AuditID:        rc.AuditID,
		UserRole:       rc.UserRole,
		Model:          rc.Model,
		StoredAt:       g.now(),
	})
}

func (g *Guard) detected(data any, reasons []string, evidence map[string]any, rc *model.Context) model.Decision {
	if g.cfg.Action == ActDeny {
		return model.Deny(data, reasons, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence))
	}
	return model.Allow(data, model.WithAuditID(rc.AuditID), model.WithEvidence(evidence))
}

func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
