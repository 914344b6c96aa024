package authz

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how stale a resolved permission set may get before
// the resolver re-fetches it.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	perms    Set
	storedAt time.Time
}

// Cache is a per-user cache of resolved permission sets with read-time
// expiry. Expired entries are treated as misses and overwritten by the next
// Put; there is no background sweeper. All methods are safe for concurrent
// use, and operations on different user ids only contend for the duration
// of the map access itself.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache constructs a Cache with the given TTL. A non-positive TTL falls
// back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

// NewCacheWithClock constructs a Cache with an injectable clock so tests
// can drive TTL-boundary behavior deterministically.
func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[int64]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached set for a user if present and fresh.
func (c *Cache) Get(userID int64) (Set, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return Set{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		return Set{}, false
	}
	return entry.perms, true
}

// Put stores the set for a user, stamping the current time and overwriting
// any existing entry.
func (c *Cache) Put(userID int64, perms Set) {
	c.mu.Lock()
	c.entries[userID] = cacheEntry{perms: perms, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes the entry for one user. Role-management and
// user-management code must call this on every role or custom-role change
// for that user.
func (c *Cache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll clears every entry. Used when a custom role's permission
// set changes, since one role edit can affect many users at once.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of entries currently held, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL exposes the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
