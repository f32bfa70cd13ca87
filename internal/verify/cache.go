package verify

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long an outcome is served from cache.
const DefaultCacheTTL = 5 * time.Minute

// Entry is a cached outcome for one device.
type Entry struct {
	DeviceID  string
	Outcome   Outcome
	CreatedAt time.Time
}

// Cache holds the most recent outcome per device for a fixed TTL.
//
// Expired entries are ignored on lookup and overwritten on the next Put;
// nothing purges them in the background. Len therefore counts stale
// entries too.
//
// Thread Safety: all methods are safe for concurrent use.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates an empty cache. A non-positive ttl uses DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for deviceID if present and younger than the TTL.
func (c *Cache) Get(deviceID string) (Entry, bool) {
	key := Normalize(deviceID)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.CreatedAt) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

// Put stores outcome for deviceID, replacing any previous entry.
func (c *Cache) Put(deviceID string, outcome Outcome) {
	key := Normalize(deviceID)

	c.mu.Lock()
	c.entries[key] = Entry{
		DeviceID:  key,
		Outcome:   outcome,
		CreatedAt: c.now(),
	}
	c.mu.Unlock()
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	return n
}

// Len returns the number of stored entries, including expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
