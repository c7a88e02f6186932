package store

import (
	"context"
	"time"
)

// RateState is the sliding-window state for one rate-limit key: the
// in-window request timestamps (oldest first) and an optional block
// expiry. A zero BlockedUntil means not blocked.
type RateState struct {
	Timestamps   []time.Time `json:"timestamps"`
	BlockedUntil time.Time   `json:"blocked_until"`
}

// RateStore holds per-key rate-limit state. Implementations must be
// safe for concurrent use. The storage backend is an implementation
// detail: guards only see get/put/evict.
type RateStore interface {
	Get(ctx context.Context, key string) (RateState, bool, error)
	Put(ctx context.Context, key string, st RateState) error
	Evict(ctx context.Context, key string) error
	Len() int
}

// Fingerprint is one stored content item for duplicate detection.
type Fingerprint struct {
	ContentHash    string
	NormalizedHash string
	NormalizedText string
	AuditID        string
	UserRole       string
	Model          string
	StoredAt       time.Time
}

// NormalizedEntry pairs a normalized hash with its normalized text,
// the unit the similarity scan iterates over.
type NormalizedEntry struct {
	Hash string
	Text string
}

// FingerprintStore holds a bounded content history. Put evicts the
// oldest-inserted entry (and its paired normalized entry) once capacity
// is reached. Implementations must be safe for concurrent use.
type FingerprintStore interface {
	GetExact(ctx context.Context, contentHash string) (Fingerprint, bool, error)
	ByNormalized(ctx context.Context, normalizedHash string) (Fingerprint, bool, error)
	Put(ctx context.Context, fp Fingerprint) error
	Normalized(ctx context.Context) ([]NormalizedEntry, error)
	Len() int
}
