package testutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock provides deterministic, monotonically increasing timestamps.
// It is safe for concurrent use.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// Start is the first instant returned by a fresh [Clock].
var Start = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// NewClock returns a clock that starts at [Start] and advances one second
// per call to [Clock.Now].
func NewClock() *Clock {
	return &Clock{current: Start.Add(-time.Second), step: time.Second}
}

// FrozenClock returns a clock that always reports t.
func FrozenClock(t time.Time) *Clock {
	return &Clock{current: t}
}

// Now advances the clock by its step and returns the new time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(c.step)

	return c.current
}

// Peek returns the current time without advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}

// IDs hands out predictable ids: prefix-1, prefix-2, ...
type IDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewIDs returns a sequence generator for prefix.
func NewIDs(prefix string) *IDs {
	return &IDs{prefix: prefix}
}

// Next returns the next id.
func (g *IDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++

	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
