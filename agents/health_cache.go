package agents

import (
	"sync"
	"time"
)

// DefaultHealthCacheTTL is how long a narrator failure suppresses further calls
const DefaultHealthCacheTTL = 30 * time.Second

// HealthCache remembers the last outcome of an optional dependency for a TTL,
// so a failing dependency is skipped instead of retried on every request.
type HealthCache struct {
	mu        sync.RWMutex
	healthy   bool
	lastErr   error
	checkedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewHealthCache creates a HealthCache. A TTL of 0 disables caching.
func NewHealthCache(ttl time.Duration) *HealthCache {
	return &HealthCache{ttl: ttl, now: time.Now}
}

// Get returns the cached outcome and whether it is still within the TTL
func (c *HealthCache) Get() (healthy bool, valid bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy, c.validLocked()
}

// Allow reports whether the dependency should be called: either nothing
// fresh is cached or the cached outcome was healthy.
func (c *HealthCache) Allow() bool {
	healthy, valid := c.Get()
	return !valid || healthy
}

// Record stores the outcome of a call; a nil err marks the dependency healthy
func (c *HealthCache) Record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = err == nil
	c.lastErr = err
	c.checkedAt = c.now()
}

// LastError returns the error of the most recent failed call, if cached
func (c *HealthCache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.validLocked() {
		return nil
	}
	return c.lastErr
}

// Invalidate clears the cache so the next request calls the dependency
func (c *HealthCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkedAt = time.Time{}
	c.lastErr = nil
}

func (c *HealthCache) TTL() time.Duration {
	return c.ttl
}

func (c *HealthCache) validLocked() bool {
	return !c.checkedAt.IsZero() && c.now().Sub(c.checkedAt) < c.ttl
}
