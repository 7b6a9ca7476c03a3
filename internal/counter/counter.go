// Package counter provides a small monotonic counter safe for
// concurrent increment-and-read: one goroutine updates it (a session's
// own FSM loop) while another reads it (the metrics HTTP handler).
package counter

import (
	"fmt"
	"sync/atomic"
)

// Counter is a 64 bit counter safe for concurrent use.
type Counter struct {
	count atomic.Uint64
}

// New creates a new 64 bit counter.
func New() *Counter {
	return new(Counter)
}

// Reset zeroes the counter.
func (c *Counter) Reset() {
	c.count.Store(0)
}

// Increment adds one.
func (c *Counter) Increment() {
	c.count.Add(1)
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	return c.count.Load()
}

// String implements fmt.Stringer.
func (c *Counter) String() string {
	return fmt.Sprintf("%d", c.Value())
}
