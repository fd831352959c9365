package geo

import (
	"sync"
	"time"
)

// Cache stores resolved locations by IP. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ip string) (Location, bool)
	Set(ip string, loc Location)
	// Sweep drops expired entries and returns how many were removed.
	Sweep() int
	Len() int
}

type cacheEntry struct {
	loc       Location
	expiresAt time.Time
}

// MemoryCache is a bounded in-process Cache with a fixed TTL.
// Expired entries are dropped on read and by Sweep; when full, the entry
// closest to expiry is evicted to make room.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries locations for ttl each.
// maxEntries <= 0 means unbounded.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(ip string) (Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ip]
	if !ok {
		return Location{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, ip)
		return Location{}, false
	}
	return entry.loc, true
}

func (c *MemoryCache) Set(ip string, loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[ip]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[ip] = cacheEntry{loc: loc, expiresAt: c.now().Add(c.ttl)}
}

// evictLocked removes expired entries, or the soonest-to-expire one if none are.
func (c *MemoryCache) evictLocked() {
	if c.sweepLocked() > 0 {
		return
	}
	var (
		oldestIP string
		oldestAt time.Time
	)
	for ip, entry := range c.entries {
		if oldestIP == "" || entry.expiresAt.Before(oldestAt) {
			oldestIP, oldestAt = ip, entry.expiresAt
		}
	}
	delete(c.entries, oldestIP)
}

func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *MemoryCache) sweepLocked() int {
	now := c.now()
	removed := 0
	for ip, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, ip)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
