// Package testutil carries deterministic test doubles shared across
// package tests: a controllable wall clock and a sequential ID
// generator.
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a manually advanced wall clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current frozen time. Pass it as the engine's or
// store's now func.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to an absolute time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// IDGen hands out "test-id-1", "test-id-2", ... so generated instance
// IDs are stable across runs.
type IDGen struct {
	mu sync.Mutex
	n  int
}

// NewIDGen returns a generator starting at test-id-1.
func NewIDGen() *IDGen {
	return &IDGen{}
}

// Next returns the next sequential ID.
func (g *IDGen) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("test-id-%d", g.n)
}
