package testutil

import (
	"sync"
	"time"
)

// BaseTime is the fixed wall-clock origin used across deterministic tests and
// golden traces: 2024-03-01 06:00:00 UTC, a Friday morning shift start.
var BaseTime = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

// ManualClock is a hand-advanced time source for tests.
//
// Unlike the simulation's virtual clock it never moves on its own, so a test
// controls exactly what "now" every subsystem observes.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at BaseTime.
func NewManualClock() *ManualClock {
	return &ManualClock{now: BaseTime}
}

// NewManualClockAt creates a clock frozen at t.
func NewManualClockAt(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current frozen time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t. Used for test reuse; never move backwards inside
// one scenario.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
