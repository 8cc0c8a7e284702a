// Package webcontent fetches the markdown rendering of web pages and keeps
// recent results in a short-lived in-process cache.
package webcontent

import (
	"sync"
	"time"
)

// DefaultTTL is how long a fetched page stays fresh.
const DefaultTTL = 10 * time.Minute

type cacheEntry struct {
	markdown   string
	insertedAt time.Time
}

// Cache maps URLs to fetched markdown. Entries expire after the TTL and are
// only evicted when read; there is no background sweep and no size bound.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry

	nowFunc func() time.Time
}

// NewCache creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowFunc: time.Now,
	}
}

// Get returns the cached markdown for url. An expired entry is deleted and
// reported as a miss.
func (c *Cache) Get(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return "", false
	}
	if c.nowFunc().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, url)
		return "", false
	}
	return e.markdown, true
}

// Set stores markdown for url, replacing any previous entry.
func (c *Cache) Set(url, markdown string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{markdown: markdown, insertedAt: c.nowFunc()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
