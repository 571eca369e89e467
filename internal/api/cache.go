package api

import (
	"encoding/json"
	"sync"
	"time"
)

type cacheEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// responseCache holds decoded GET payloads keyed by method+URL for a
// short TTL. It is fully invalidated when the session is cleared.
type responseCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *responseCache) get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *responseCache) put(key string, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
