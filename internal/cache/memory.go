package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps entries in process memory
type MemoryBackend struct {
	cache *gocache.Cache
}

// NewMemoryBackend creates an in-process backend that sweeps expired entries every cleanupInterval
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	value, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := value.(string)
	return s, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(key)
	}
	return nil
}

// ItemCount returns the number of stored entries, including expired ones not yet swept
func (m *MemoryBackend) ItemCount() int {
	return m.cache.ItemCount()
}
