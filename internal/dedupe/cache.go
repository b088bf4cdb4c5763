// Package dedupe keeps a bounded in-memory set of recently persisted item IDs
// so repeat runs skip store lookups for headlines they have just seen.
package dedupe

import (
	"sort"
	"sync"
	"time"
)

// Cache is a capacity- and TTL-bounded set of item IDs. It is advisory: the
// store remains the source of truth for identity, the cache only short-cuts
// the common re-fetch case.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// New creates a cache with the provided capacity and ttl.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[string]time.Time, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Contains reports whether the ID was added within the ttl window.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.seen[id]
	return ok && c.now().Sub(ts) <= c.ttl
}

// Add records an ID, evicting expired and oldest entries when over capacity.
func (c *Cache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seen[id] = now
	if len(c.seen) <= c.capacity {
		return
	}

	cutoff := now.Add(-c.ttl)
	for key, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, key)
		}
	}
	if len(c.seen) <= c.capacity {
		return
	}

	// Still over capacity: drop the oldest entries down to 90% so eviction
	// does not run on every single Add.
	type entry struct {
		id string
		ts time.Time
	}
	entries := make([]entry, 0, len(c.seen))
	for key, ts := range c.seen {
		entries = append(entries, entry{id: key, ts: ts})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })

	target := c.capacity * 9 / 10
	if target < 1 {
		target = 1
	}
	for i := 0; len(c.seen) > target && i < len(entries); i++ {
		delete(c.seen, entries[i].id)
	}
}

// Len returns the current number of cached IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
