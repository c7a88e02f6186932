package store

import (
	"context"
	"sync"
	"time"
)

type rateEntry struct {
	state    RateState
	lastSeen time.Time
}

// MemoryRateStore is a mutex-guarded in-memory RateStore with optional
// idle-key eviction via a janitor goroutine. With an idle TTL of zero
// idle keys are never evicted and the key map grows without bound.
type MemoryRateStore struct {
	mu           sync.Mutex
	entries      map[string]*rateEntry
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

// MemoryRateOption configures a MemoryRateStore.
type MemoryRateOption func(*MemoryRateStore)

// WithIdleTTL sets how long an untouched key survives before the
// janitor evicts it. Zero disables idle eviction.
func WithIdleTTL(d time.Duration) MemoryRateOption {
	return func(s *MemoryRateStore) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor sweep interval.
func WithCleanupEvery(d time.Duration) MemoryRateOption {
	return func(s *MemoryRateStore) { s.cleanupEvery = d }
}

// NewMemoryRateStore creates an in-memory rate store with a 15 minute
// idle TTL and 2 minute sweep interval by default.
func NewMemoryRateStore(opts ...MemoryRateOption) *MemoryRateStore {
	s := &MemoryRateStore{
		entries:      make(map[string]*rateEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryRateStore) Get(_ context.Context, key string) (RateState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok {
		return RateState{}, false, nil
	}
	ent.lastSeen = time.Now()
	st := RateState{
		Timestamps:   append([]time.Time(nil), ent.state.Timestamps...),
		BlockedUntil: ent.state.BlockedUntil,
	}
	return st, true, nil
}

func (s *MemoryRateStore) Put(_ context.Context, key string, st RateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &rateEntry{state: st, lastSeen: time.Now()}
	return nil
}

func (s *MemoryRateStore) Evict(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryRateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup evicts keys untouched for longer than the idle TTL.
func (s *MemoryRateStore) Cleanup() {
	if s.idleTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor sweeps idle keys periodically until ctx is cancelled.
func (s *MemoryRateStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 || s.idleTTL <= 0 {
		return
	}
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// MemoryFingerprintStore is a bounded in-memory FingerprintStore with
// first-in-first-out eviction. Insertion order, not comparison recency,
// decides which entry goes first.
type MemoryFingerprintStore struct {
	mu       sync.Mutex
	capacity int
	exact    map[string]Fingerprint
	byNorm   map[string]string // normalized hash -> content hash
	order    []string          // content hashes, oldest first
}

// NewMemoryFingerprintStore creates a fingerprint store holding at most
// capacity entries.
func NewMemoryFingerprintStore(capacity int) *MemoryFingerprintStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryFingerprintStore{
		capacity: capacity,
		exact:    make(map[string]Fingerprint),
		byNorm:   make(map[string]string),
	}
}

func (s *MemoryFingerprintStore) GetExact(_ context.Context, contentHash string) (Fingerprint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.exact[contentHash]
	return fp, ok, nil
}

func (s *MemoryFingerprintStore) ByNormalized(_ context.Context, normalizedHash string) (Fingerprint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contentHash, ok := s.byNorm[normalizedHash]
	if !ok {
		return Fingerprint{}, false, nil
	}
	fp, ok := s.exact[contentHash]
	return fp, ok, nil
}

func (s *MemoryFingerprintStore) Put(_ context.Context, fp Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exact[fp.ContentHash]; exists {
		s.exact[fp.ContentHash] = fp
		return nil
	}

	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		if old, ok := s.exact[oldest]; ok {
			delete(s.exact, oldest)
			// Evict the paired normalized entry with its exact entry,
			// unless a newer item maps the same normalized hash.
			if s.byNorm[old.NormalizedHash] == oldest {
				delete(s.byNorm, old.NormalizedHash)
			}
		}
	}

	s.exact[fp.ContentHash] = fp
	s.byNorm[fp.NormalizedHash] = fp.ContentHash
	s.order = append(s.order, fp.ContentHash)
	return nil
}

func (s *MemoryFingerprintStore) Normalized(_ context.Context) ([]NormalizedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]NormalizedEntry, 0, len(s.order))
	for _, contentHash := range s.order {
		fp, ok := s.exact[contentHash]
		if !ok {
			continue
		}
		if s.byNorm[fp.NormalizedHash] != contentHash {
			continue
		}
		entries = append(entries, NormalizedEntry{Hash: fp.NormalizedHash, Text: fp.NormalizedText})
	}
	return entries, nil
}

func (s *MemoryFingerprintStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exact)
}
