package telemetry

import (
	"sync"
	"time"
)

// DefaultCacheRetention is how long a last known good reading may be served as a fallback.
const DefaultCacheRetention = 24 * time.Hour

// CacheEntry is the last known good reading and the time it was fetched.
type CacheEntry struct {
	Reading   Reading   `json:"reading"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Cache holds the last known good reading. Entries older than the retention window are
// dropped on access. Concurrent writers are allowed; the last Set wins.
type Cache struct {
	mu        sync.Mutex
	entry     *CacheEntry
	retention time.Duration
	now       func() time.Time
}

// NewCache creates an empty cache. A nil clock defaults to time.Now.
func NewCache(retention time.Duration, now func() time.Time) *Cache {
	if retention <= 0 {
		retention = DefaultCacheRetention
	}

	if now == nil {
		now = time.Now
	}

	return &Cache{retention: retention, now: now}
}

// Get returns the entry if one exists and is within the retention window.
func (c *Cache) Get() (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.validLocked()
}

// Set overwrites the entry.
func (c *Cache) Set(r Reading, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = &CacheEntry{Reading: r, FetchedAt: fetchedAt}
}

// Age returns how long ago the current entry was fetched.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.validLocked()
	if !ok {
		return 0, false
	}

	return c.now().Sub(e.FetchedAt), true
}

// IsStale reports whether the entry is missing or older than threshold.
func (c *Cache) IsStale(threshold time.Duration) bool {
	age, ok := c.Age()

	return !ok || age > threshold
}

// Clear drops the entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = nil
}

// Retention returns the retention window.
func (c *Cache) Retention() time.Duration {
	return c.retention
}

func (c *Cache) validLocked() (CacheEntry, bool) {
	if c.entry == nil {
		return CacheEntry{}, false
	}

	if c.now().Sub(c.entry.FetchedAt) > c.retention {
		c.entry = nil
		return CacheEntry{}, false
	}

	return *c.entry, true
}
