package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// TTLCache holds string values keyed by lookup key. Concurrent misses for the
// same key share a single fetch through singleflight.
type TTLCache struct {
	name string
	ttl  time.Duration

	mu    sync.RWMutex
	store map[string]cacheEntry
	sf    singleflight.Group
}

// NewTTLCache creates a cache; name is only used in log lines.
func NewTTLCache(name string, ttl time.Duration) *TTLCache {
	return &TTLCache{name: name, ttl: ttl, store: make(map[string]cacheEntry)}
}

func (c *TTLCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (c *TTLCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate drops key from the cache.
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// Len reports the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// GetOrFetch returns the cached value for key or calls fetch once for all
// concurrent callers. Errors are not cached.
func (c *TTLCache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (string, error)) (string, error) {
	if v, ok := c.get(key); ok {
		log.Debug().Str("cache", c.name).Str("key", key).Msg("cache hit")
		return v, nil
	}

	v, err, shared := c.sf.Do(key, func() (interface{}, error) {
		// Another caller may have populated the entry while we waited.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		start := time.Now()
		v, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		c.set(key, v)
		log.Debug().Str("cache", c.name).Str("key", key).Dur("fetch_ms", time.Since(start)).Msg("cache filled")
		return v, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug().Str("cache", c.name).Str("key", key).Msg("cache fetch shared")
	}
	return v.(string), nil
}
