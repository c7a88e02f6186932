package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateStore is a RateStore backed by Redis, for deployments where
// multiple validators share rate-limit state. Each key holds the
// JSON-encoded RateState under a prefixed Redis key with a TTL so idle
// keys age out server-side.
type RedisRateStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisRateOption configures a RedisRateStore.
type RedisRateOption func(*RedisRateStore)

// WithRedisPrefix sets the Redis key prefix. Default "guardchain:rate".
func WithRedisPrefix(prefix string) RedisRateOption {
	return func(s *RedisRateStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRedisTTL sets the per-key TTL. It should exceed the rate window
// plus block duration. Default 24h.
func WithRedisTTL(d time.Duration) RedisRateOption {
	return func(s *RedisRateStore) { s.ttl = d }
}

// NewRedisRateStore creates a rate store over the given Redis client.
func NewRedisRateStore(rdb *redis.Client, opts ...RedisRateOption) *RedisRateStore {
	s := &RedisRateStore{
		rdb:    rdb,
		prefix: "guardchain:rate",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisRateStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisRateStore) Get(ctx context.Context, key string) (RateState, bool, error) {
	raw, err := s.rdb.Get(ctx, s.redisKey(key)).Result()
	if err == redis.Nil {
		return RateState{}, false, nil
	}
	if err != nil {
		return RateState{}, false, fmt.Errorf("store: redis get %q: %w", key, err)
	}
	var st RateState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return RateState{}, false, fmt.Errorf("store: decode state for %q: %w", key, err)
	}
	return st, true, nil
}

func (s *RedisRateStore) Put(ctx context.Context, key string, st RateState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("store: encode state for %q: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.redisKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisRateStore) Evict(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("store: redis del %q: %w", key, err)
	}
	return nil
}

// Len reports the number of tracked keys. Redis owns key lifecycle via
// TTLs, so the local view is always 0; callers needing a count should
// ask Redis directly.
func (s *RedisRateStore) Len() int { return 0 }
