// Package countdown implements the booking session deadline clock.
//
// The deadline is authoritative on the server: every successful
// validation call reports the true remaining seconds, and Reconcile
// overwrites the local counter with that value unconditionally. The
// local once-per-second tick exists only to give the user a live
// countdown between validations — it is display state, never truth.
//
// Two rules govern the clock:
//
//	R1 (tick): while running, decrement the counter once per interval,
//	    never below zero.
//	R2 (reconcile): on a server report of v seconds, set the counter
//	    to v — the server always wins, even if v is larger.
//
// On reaching zero the clock fires expiry exactly once, by closing the
// Expired channel, and stops ticking. The side effects of expiry
// (logout notification, clearing persisted state, user notice) belong
// to the owner reacting to that event, not to the clock.
package countdown

import (
	"sync"
	"time"
)

// DefaultInterval is the production tick interval.
const DefaultInterval = time.Second

// Clock counts a session deadline down to zero. Create with New, use
// for exactly one session, then discard. Safe for concurrent use.
type Clock struct {
	interval time.Duration

	mu        sync.Mutex
	remaining int
	started   bool
	stopped   bool
	fired     bool

	stop    chan struct{}
	stopX   sync.Once
	expired chan struct{}
}

// Option configures a Clock.
type Option func(*Clock)

// WithInterval overrides the tick interval. Tests use short intervals.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) { c.interval = d }
}

// New creates a stopped clock. Nothing ticks until Start.
func New(opts ...Option) *Clock {
	c := &Clock{
		interval: DefaultInterval,
		stop:     make(chan struct{}),
		expired:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start sets the counter and begins ticking. Calling Start again on
// the same clock is a no-op. Starting at zero fires expiry
// immediately.
func (c *Clock) Start(initialRemainingSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	c.remaining = initialRemainingSeconds
	if c.remaining <= 0 {
		c.remaining = 0
		c.fireLocked()
		return
	}
	go c.run()
}

// Reconcile overwrites the counter with the server-reported value.
// A report of zero (or less) fires expiry. After expiry or Stop,
// reconciliation is ignored.
func (c *Clock) Reconcile(serverRemainingSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired || c.stopped {
		return
	}
	if serverRemainingSeconds <= 0 {
		c.remaining = 0
		c.fireLocked()
		return
	}
	c.remaining = serverRemainingSeconds
}

// Remaining returns the current counter value. Never negative.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired is closed exactly once, when the counter reaches zero.
func (c *Clock) Expired() <-chan struct{} { return c.expired }

// Stop cancels ticking without firing expiry. Used on manual logout or
// navigation away. Idempotent.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopX.Do(func() { close(c.stop) })
}

// run is the tick loop. It exits when the clock expires or stops.
func (c *Clock) run() {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			if c.tick() {
				return
			}
		}
	}
}

// tick applies R1. Returns true when the loop should end.
func (c *Clock) tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.fired {
		return true
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.fireLocked()
		return true
	}
	return false
}

// fireLocked fires expiry at most once. Callers hold c.mu.
func (c *Clock) fireLocked() {
	if c.fired {
		return
	}
	c.fired = true
	close(c.expired)
}
