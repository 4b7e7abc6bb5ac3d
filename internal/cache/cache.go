// Package cache provides the in-memory TTL cache the dashboard loader
// keys its composite results into.
package cache

import (
	"regexp"
	"sync"
	"time"
)

const (
	DefaultTTL = 5 * time.Minute

	// maxEntries triggers an expired-entry sweep before inserting.
	maxEntries = 50
)

type entry struct {
	value     any
	expiresAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores a value under key for ttl. A non-positive ttl falls back
// to DefaultTTL. When the cache is at capacity, expired entries are
// swept first.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxEntries {
		c.cleanupLocked()
	}

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Get returns the cached value, or nil if the key is absent or expired.
// Expired entries are removed as a side effect.
func (c *Cache) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return e.value
}

func (c *Cache) Has(key string) bool {
	return c.Get(key) != nil
}

// Invalidate removes every key matching the pattern. An invalid pattern
// removes nothing.
func (c *Cache) Invalidate(pattern string) int {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) cleanupLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
