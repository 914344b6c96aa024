package authz

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives cache expiry deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheGetPut(t *testing.T) {
	clock := newFakeClock()
	cache := NewCacheWithClock(5*time.Minute, clock.Now)

	_, ok := cache.Get(1)
	assert.False(t, ok, "cold cache must miss")

	set := NewSet(Permission{Resource: "leads", Action: "view_all"})
	cache.Put(1, set)

	got, ok := cache.Get(1)
	require.True(t, ok)
	assert.True(t, got.Equal(set))
}

func TestCacheReadTimeExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewCacheWithClock(5*time.Minute, clock.Now)
	cache.Put(7, NewSet(Permission{Resource: "tasks", Action: "create"}))

	clock.Advance(5*time.Minute - time.Second)
	_, ok := cache.Get(7)
	assert.True(t, ok, "entry inside TTL must hit")

	clock.Advance(time.Second)
	_, ok = cache.Get(7)
	assert.False(t, ok, "entry at exactly TTL must miss")

	// Expired entries are ignored, not evicted.
	assert.Equal(t, 1, cache.Len())

	// A Put refreshes the timestamp.
	cache.Put(7, NewSet(Permission{Resource: "tasks", Action: "create"}))
	_, ok = cache.Get(7)
	assert.True(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(5 * time.Minute)
	cache.Put(1, NewSet(Permission{Resource: "leads", Action: "create"}))
	cache.Put(2, NewSet(Permission{Resource: "tasks", Action: "create"}))

	cache.Invalidate(1)
	_, ok := cache.Get(1)
	assert.False(t, ok)
	_, ok = cache.Get(2)
	assert.True(t, ok, "other users unaffected")

	cache.InvalidateAll()
	_, ok = cache.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheDefaultTTL(t *testing.T) {
	cache := NewCache(0)
	assert.Equal(t, DefaultCacheTTL, cache.TTL())
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache(5 * time.Minute)
	set := NewSet(Permission{Resource: "leads", Action: "view_assigned"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			userID := int64(worker % 4)
			for j := 0; j < 500; j++ {
				cache.Put(userID, set)
				if got, ok := cache.Get(userID); ok {
					// A reader sees either nothing or a fully written set.
					assert.True(t, got.Equal(set))
				}
				if j%100 == 0 {
					cache.Invalidate(userID)
				}
				if j%250 == 0 && worker == 0 {
					cache.InvalidateAll()
				}
			}
		}(i)
	}
	wg.Wait()
}
