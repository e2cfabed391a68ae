package cache

import (
	"context"
	"log"
	"time"
)

// Backend is the storage behind a TieredCache
type Backend interface {
	// Get returns the stored value and whether it was found and unexpired
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ComputeFunc produces the value for a missing key
type ComputeFunc func(ctx context.Context) (string, error)

// Observer is notified of every lookup outcome, used for metrics
type Observer func(key string, hit bool)

// TieredCache is a get-or-compute cache for derived context strings.
// Empty values are never stored and backend failures behave as misses.
type TieredCache struct {
	backend  Backend
	observer Observer
}

// New creates a TieredCache over backend. A nil backend means every lookup recomputes.
func New(backend Backend) *TieredCache {
	return &TieredCache{backend: backend}
}

// SetObserver registers fn to be called on every hit or miss
func (c *TieredCache) SetObserver(fn Observer) {
	c.observer = fn
}

// GetOrCompute returns the cached value for key, or calls compute and stores
// a non-empty result for ttl. Errors from compute are returned unchanged.
func (c *TieredCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (string, error) {
	if c.backend != nil {
		value, found, err := c.backend.Get(ctx, key)
		if err != nil {
			log.Printf("⚠️  [CACHE] Get %s failed, recomputing: %v", key, err)
		} else if found {
			c.observe(key, true)
			return value, nil
		}
	}
	c.observe(key, false)

	value, err := compute(ctx)
	if err != nil {
		return "", err
	}

	// No negative caching
	if value == "" || c.backend == nil {
		return value, nil
	}

	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		log.Printf("⚠️  [CACHE] Set %s failed: %v", key, err)
	}
	return value, nil
}

// Invalidate removes keys from the backend. Failures are logged, never returned.
func (c *TieredCache) Invalidate(ctx context.Context, keys ...string) {
	if c.backend == nil || len(keys) == 0 {
		return
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		log.Printf("⚠️  [CACHE] Invalidate %v failed: %v", keys, err)
		return
	}
	log.Printf("🗑️  [CACHE] Invalidated %d key(s)", len(keys))
}

func (c *TieredCache) observe(key string, hit bool) {
	if c.observer != nil {
		c.observer(key, hit)
	}
}

// DailyKey derives a per-calendar-day key so values roll over at midnight without eviction
func DailyKey(prefix string, date time.Time) string {
	return prefix + "_" + date.Format("2006-01-02")
}
