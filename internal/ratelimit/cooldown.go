// Package ratelimit implements a fixed-window cooldown keyed by opaque
// strings. It prevents a requester from re-triggering fulfillment (or the
// link-bypass flow) within a short window. Distinct flows use distinct
// Cooldown instances and never share state.
//
// The implementation keeps per-key marks in a mutex-guarded map with
// opportunistic garbage collection during lookups, bounding memory without a
// background goroutine.
package ratelimit

import (
	"sync"
	"time"
)

// Cooldown is a fixed-window limiter. TryAcquire(k) returns true and marks k
// on first use; further calls for k return false until the window elapses.
// Safe for concurrent use.
type Cooldown struct {
	window time.Duration

	mu       sync.Mutex
	marks    map[string]time.Time
	lookups  uint64
	nowFn    func() time.Time
	gcEveryN uint64
}

// Option customizes a Cooldown.
type Option func(*Cooldown)

// WithClock substitutes the time source, letting tests advance time manually.
func WithClock(now func() time.Time) Option {
	return func(c *Cooldown) { c.nowFn = now }
}

// NewCooldown returns a limiter with the given window. Windows <= 0 are
// coerced to one second.
func NewCooldown(window time.Duration, opts ...Option) *Cooldown {
	if window <= 0 {
		window = time.Second
	}
	c := &Cooldown{
		window:   window,
		marks:    make(map[string]time.Time),
		nowFn:    time.Now,
		gcEveryN: 1000,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TryAcquire marks key as active if it is not currently marked and reports
// whether the caller may proceed. Expired marks are treated as absent.
func (c *Cooldown) TryAcquire(key string) bool {
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic cleanup of expired marks after a threshold of lookups,
	// before touching the requested key so stale entries cannot linger.
	c.lookups++
	if c.lookups >= c.gcEveryN {
		for k, at := range c.marks {
			if now.Sub(at) >= c.window {
				delete(c.marks, k)
			}
		}
		c.lookups = 0
	}

	if at, ok := c.marks[key]; ok && now.Sub(at) < c.window {
		return false
	}
	c.marks[key] = now
	return true
}

// Release clears the mark for key before its window elapses.
func (c *Cooldown) Release(key string) {
	c.mu.Lock()
	delete(c.marks, key)
	c.mu.Unlock()
}

// Window returns the configured cooldown window.
func (c *Cooldown) Window() time.Duration { return c.window }
