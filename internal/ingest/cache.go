package ingest

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheExpiry is the dedup window: the same identifier is absorbed
// for an hour, then admitted again.
const DefaultCacheExpiry = 3600000 * time.Millisecond

// Cache absorbs redundant delivery of the same logical event. Admit records
// the key on first sight and reports true ("processed"); within the expiry
// window it reports false ("duplicate"). Entries logically expire by age,
// never by explicit delete.
type Cache interface {
	Admit(ctx context.Context, key string) (bool, error)
	Close() error
}

// MemoryCache is the single-instance TTL cache. Entries are treated as
// absent once older than expiry; a periodic sweep additionally bounds
// memory. The clock is injectable so tests can advance time.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	expiry  time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory dedup cache with the given window.
func NewMemoryCache(expiry time.Duration) *MemoryCache {
	if expiry <= 0 {
		expiry = DefaultCacheExpiry
	}
	return &MemoryCache{
		entries: make(map[string]time.Time),
		expiry:  expiry,
		now:     time.Now,
	}
}

// Admit records the key if unseen or expired, reporting whether the caller
// should process the event.
func (c *MemoryCache) Admit(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if firstSeen, ok := c.entries[key]; ok && now.Sub(firstSeen) < c.expiry {
		return false, nil
	}
	c.entries[key] = now
	return true, nil
}

// Sweep drops entries past the expiry window and returns how many were
// removed. Purely a memory bound; correctness never depends on it.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, firstSeen := range c.entries {
		if now.Sub(firstSeen) >= c.expiry {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until the context is done.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len returns the current entry count, expired entries included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases nothing for the in-memory cache.
func (c *MemoryCache) Close() error {
	return nil
}
