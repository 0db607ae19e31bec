package rollgate

import (
	"sync"
	"time"
)

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	StaleHits int64
}

// FlagCache stores the most recent flag snapshot with a freshness window
// and a longer stale window used for degraded fallback. Entries move from
// fresh to stale to expired purely by age; a Set resets the clock.
type FlagCache struct {
	mu        sync.RWMutex
	flags     map[string]bool
	updatedAt time.Time
	ttl       time.Duration
	staleTTL  time.Duration
	enabled   bool

	hits      int64
	misses    int64
	staleHits int64
}

// NewFlagCache creates a cache with the given freshness and stale windows.
func NewFlagCache(cfg CacheConfig) *FlagCache {
	return &FlagCache{
		ttl:      cfg.TTL,
		staleTTL: cfg.StaleTTL,
		enabled:  cfg.Enabled,
	}
}

// Set replaces the cached snapshot and resets its age.
func (c *FlagCache) Set(flags map[string]bool) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = copyFlags(flags)
	c.updatedAt = time.Now()
}

// Get returns the cached snapshot if it is still fresh.
func (c *FlagCache) Get() (map[string]bool, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flags == nil || time.Since(c.updatedAt) > c.ttl {
		c.misses++
		return nil, false
	}
	c.hits++
	return copyFlags(c.flags), true
}

// GetStale returns the cached snapshot even past its freshness window, as
// long as it has not aged beyond TTL+StaleTTL. Used as a fallback when the
// server is unreachable.
func (c *FlagCache) GetStale() (map[string]bool, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flags == nil || time.Since(c.updatedAt) > c.ttl+c.staleTTL {
		c.misses++
		return nil, false
	}
	c.staleHits++
	return copyFlags(c.flags), true
}

// Touch re-dates the cached snapshot without replacing it, counting a
// hit. Used when the server confirms the cached data is still current.
func (c *FlagCache) Touch() bool {
	if !c.enabled {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flags == nil {
		return false
	}
	c.hits++
	c.updatedAt = time.Now()
	return true
}

// HasFresh reports whether a fresh snapshot is available.
func (c *FlagCache) HasFresh() bool {
	if !c.enabled {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags != nil && time.Since(c.updatedAt) <= c.ttl
}

// HasAny reports whether any snapshot, fresh or stale, is available.
func (c *FlagCache) HasAny() bool {
	if !c.enabled {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags != nil && time.Since(c.updatedAt) <= c.ttl+c.staleTTL
}

// Clear drops the cached snapshot.
func (c *FlagCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = nil
	c.updatedAt = time.Time{}
}

// Stats returns a snapshot of the hit counters.
func (c *FlagCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, StaleHits: c.staleHits}
}

func copyFlags(flags map[string]bool) map[string]bool {
	out := make(map[string]bool, len(flags))
	for k, v := range flags {
		out[k] = v
	}
	return out
}
