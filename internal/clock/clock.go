// Package clock abstracts wall-clock time so countdowns can be driven by a
// mock clock in tests. Production code uses RealClock.
package clock

import (
	"sync"
	"time"
)

// Clock provides the time operations the tick driver needs.
type Clock interface {
	// AfterFunc waits for the duration to elapse and then calls f in its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
	// Now returns the current time.
	Now() time.Time
}

// Timer represents a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the Timer from firing. Returns false if it already fired or was stopped.
	Stop() bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// NewRealClock creates a new RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// AfterFunc implements Clock.AfterFunc using time.AfterFunc.
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Now implements Clock.Now using time.Now.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Ticker calls a function every interval until stopped. Each call is
// scheduled only after the previous one returns, so calls never overlap.
type Ticker struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	pending Timer
	stopped bool
}

// Every starts a Ticker on c. The first call happens one interval from now.
func Every(c Clock, interval time.Duration, fn func()) *Ticker {
	t := &Ticker{clock: c, interval: interval, fn: fn}
	t.mu.Lock()
	t.pending = c.AfterFunc(interval, t.fire)
	t.mu.Unlock()
	return t
}

func (t *Ticker) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.fn()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.pending = t.clock.AfterFunc(t.interval, t.fire)
	}
}

// Stop cancels future calls. A call already in progress completes.
// Returns false if the ticker was already stopped.
func (t *Ticker) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.pending != nil {
		t.pending.Stop()
	}
	return true
}
