// Package timer provides the two recurring timers an established BGP
// session runs: the hold timer (RFC 4271 §4.4, torn down on expiry) and
// the keepalive timer (RFC 4271 §4.4, fires to send a KEEPALIVE). Both
// are just a restartable countdown to a callback, but the negotiated
// hold time can be renegotiated mid-session on some error recoveries,
// so Reset takes a duration rather than always reusing the original one.
package timer

import (
	"sync"
	"time"
)

// Timer is a restartable countdown to a callback, safe to Reset or Stop
// concurrently with its own firing.
type Timer struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	fn       func()
	running  bool
}

// New creates a timer that calls f once after d elapses. A zero d
// means "never fires" (used for HoldTime=0, RFC 4271 §4.2): the timer
// is created already stopped.
func New(d time.Duration, f func()) *Timer {
	t := &Timer{interval: d, fn: f}
	if d <= 0 {
		return t
	}
	t.timer = time.AfterFunc(d, t.fire)
	t.running = true
	return t
}

func (t *Timer) fire() {
	t.mu.Lock()
	t.running = false
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Reset restarts the countdown from d, replacing the previous interval.
// A zero d stops the timer instead of scheduling an immediate fire,
// matching HoldTime=0's "keepalives disabled" semantics.
func (t *Timer) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
	if t.timer != nil {
		t.timer.Stop()
	}
	if d <= 0 {
		t.running = false
		return
	}
	t.timer = time.AfterFunc(d, t.fire)
	t.running = true
}

// Stop cancels the timer. It is safe to call on an already-stopped or
// already-fired timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.running = false
}

// Running reports whether the timer is currently counting down.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Interval returns the duration the timer was last (re)started with.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}
