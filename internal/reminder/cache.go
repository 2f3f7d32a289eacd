package reminder

import (
	"context"
	"sync"
	"time"
)

// Cache is the process-local dedup ledger. It is only ever touched from the
// scanner, which the scheduler guarantees never runs concurrently with
// itself, but it carries its own lock so the health endpoint can read the
// size at any time. Entries are lost on restart; the suppression window
// bounds the resulting duplicates.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]time.Time
	suppress  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewCache builds a ledger with the given suppression and retention
// horizons. nowFn is injectable for tests; nil means time.Now.
func NewCache(suppress, retention time.Duration, nowFn func() time.Time) *Cache {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache{
		entries:   make(map[Key]time.Time),
		suppress:  suppress,
		retention: retention,
		now:       nowFn,
	}
}

// Purge drops entries older than the retention horizon.
func (c *Cache) Purge(_ context.Context) {
	cutoff := c.now().Add(-c.retention)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

// HasRecent reports whether key was marked within the suppression horizon.
func (c *Cache) HasRecent(_ context.Context, key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.entries[key]
	if !ok {
		return false
	}
	return c.now().Sub(ts) < c.suppress
}

// Mark records a successful send for key.
func (c *Cache) Mark(_ context.Context, key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = c.now()
}

// Size returns the number of entries, expired or not.
func (c *Cache) Size(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
