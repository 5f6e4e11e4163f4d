package session

import (
	"sync"
	"time"
)

// ActivityCache is the fast-path store for session activity timestamps.
// Deployments can swap the in-process default for a distributed cache.
type ActivityCache interface {
	Get(sessionID string) (time.Time, bool)
	Set(sessionID string, lastActivity time.Time)
	Delete(sessionID string)
	// PruneBefore drops entries whose last activity predates cutoff. A
	// cache with native TTLs may make this a no-op.
	PruneBefore(cutoff time.Time)
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]time.Time)}
}

func (c *MemoryCache) Get(sessionID string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[sessionID]
	return t, ok
}

func (c *MemoryCache) Set(sessionID string, lastActivity time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = lastActivity
}

func (c *MemoryCache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

func (c *MemoryCache) PruneBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, last := range c.entries {
		if last.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}
