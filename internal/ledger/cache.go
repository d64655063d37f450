package ledger

import (
	"sort"
	"sync"
	"time"
)

// Cache is the bounded short-term "recently seen" map. When it grows past
// maxEntries the oldest batchSize entries are dropped at once.
type Cache struct {
	mu         sync.Mutex
	items      map[string]time.Time
	maxEntries int
	batchSize  int
}

func NewCache(maxEntries, batchSize int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Cache{
		items:      make(map[string]time.Time),
		maxEntries: maxEntries,
		batchSize:  batchSize,
	}
}

// Seen reports whether key was marked less than cooldown before now.
func (c *Cache) Seen(key string, now time.Time, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.items[key]
	if !ok {
		return false
	}
	return now.Sub(at) < cooldown
}

// Mark records key as seen at now and returns the number of evicted entries.
func (c *Cache) Mark(key string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = now
	if len(c.items) <= c.maxEntries {
		return 0
	}
	return c.evictOldest()
}

// evictOldest removes the batchSize oldest entries. Caller holds mu.
func (c *Cache) evictOldest() int {
	type entry struct {
		key string
		at  time.Time
	}
	entries := make([]entry, 0, len(c.items))
	for k, at := range c.items {
		entries = append(entries, entry{k, at})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].key < entries[j].key
		}
		return entries[i].at.Before(entries[j].at)
	})

	n := c.batchSize
	if over := len(c.items) - c.maxEntries; over > n {
		n = over
	}
	if n > len(entries) {
		n = len(entries)
	}
	for _, e := range entries[:n] {
		delete(c.items, e.key)
	}
	return n
}

// Sweep drops entries older than ttl and returns how many were removed.
func (c *Cache) Sweep(now time.Time, ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, at := range c.items {
		if now.Sub(at) >= ttl {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]time.Time)
}

func (c *Cache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}
