// Package evalcache implements the bounded TTL fingerprint cache that
// lets the controller loop skip redundant AUTO_EVALUATE dispatches
// when sensor jitter re-fires an event without a material change.
package evalcache

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/thatsimonsguy/hvac-controller/internal/model"
)

// Cache is a bounded map keyed by a quantized fingerprint of the
// evaluation inputs. A zero TTL disables the cache outright: every
// lookup misses.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

// New builds a Cache with the given TTL in milliseconds. ttlMs == 0
// disables caching.
func New(ttlMs int) *Cache {
	return &Cache{
		ttl:     time.Duration(ttlMs) * time.Millisecond,
		entries: make(map[string]time.Time),
	}
}

// Fingerprint quantizes the evaluation inputs:
// (floor(indoor*10), floor(outdoor*10), hour, isWeekday, systemMode,
// lastDefrostBucketSeconds).
func Fingerprint(indoor, outdoor float64, hour int, isWeekday bool, mode model.SystemMode, lastDefrost *time.Time, now time.Time) string {
	bucket := 0
	if lastDefrost != nil {
		bucket = int(now.Sub(*lastDefrost).Seconds())
	}
	return fmt.Sprintf("%d|%d|%d|%t|%s|%d",
		int(math.Floor(indoor*10)),
		int(math.Floor(outdoor*10)),
		hour, isWeekday, mode, bucket)
}

// Hit reports whether fingerprint is present and unexpired, evicting
// it lazily if it has expired. A disabled cache (ttl == 0) never hits.
func (c *Cache) Hit(fingerprint string, now time.Time) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt, ok := c.entries[fingerprint]
	if !ok {
		return false
	}
	if now.After(expiresAt) {
		delete(c.entries, fingerprint)
		return false
	}
	return true
}

// Record stores fingerprint with a fresh expiry. A disabled cache is a
// no-op.
func (c *Cache) Record(fingerprint string, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = now.Add(c.ttl)
}

// Len reports the current entry count, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evict removes every expired entry. The controller loop calls this
// on each periodic tick so the cache doesn't grow unbounded between hits.
func (c *Cache) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for k, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}
