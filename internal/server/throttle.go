package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterCleanupEvery = time.Minute
)

// clientLimiters keeps one token bucket per client host. Idle buckets
// are evicted by a background janitor so the map stays bounded.
type clientLimiters struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	buckets map[string]*clientBucket
	quit    chan struct{}
}

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(perSec float64, burst int) *clientLimiters {
	return &clientLimiters{
		perSec:  rate.Limit(perSec),
		burst:   burst,
		buckets: make(map[string]*clientBucket),
		quit:    make(chan struct{}),
	}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	b, ok := c.buckets[key]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(c.perSec, c.burst)}
		c.buckets[key] = b
	}
	b.lastSeen = time.Now()
	c.mu.Unlock()
	return b.lim.Allow()
}

func (c *clientLimiters) start() {
	go func() {
		ticker := time.NewTicker(limiterCleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-c.quit:
				return
			case <-ticker.C:
				c.cleanup()
			}
		}
	}()
}

func (c *clientLimiters) stop() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

func (c *clientLimiters) cleanup() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	c.mu.Lock()
	for key, b := range c.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(c.buckets, key)
		}
	}
	c.mu.Unlock()
}
