package secrets

import (
	"sync"
	"time"
)

// secretCache is a TTL cache shared by the remote secret managers
type secretCache struct {
	entries map[string]cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
	enabled bool
}

type cacheEntry struct {
	expiresAt time.Time
	value     string
}

func newSecretCache(enabled bool, ttl time.Duration) *secretCache {
	return &secretCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		enabled: enabled,
	}
}

func (c *secretCache) get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

func (c *secretCache) set(key, value string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{
		expiresAt: time.Now().Add(c.ttl),
		value:     value,
	}
	c.mu.Unlock()
}
