// Package clock abstracts the time source and one-shot timers so that
// time-dependent components can run against a virtual clock in tests.
package clock

import (
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Clock provides the current instant and one-shot timers.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// Schedule runs fn once after delay. A non-positive delay fires as
	// soon as possible.
	Schedule(delay time.Duration, fn func()) Handle

	// Cancel stops a scheduled callback. It reports whether the callback
	// was still pending.
	Cancel(h Handle) bool
}

// Real is a Clock backed by the wall clock and time.AfterFunc.
type Real struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]*time.Timer
}

// NewReal creates a wall clock.
func NewReal() *Real {
	return &Real{timers: make(map[Handle]*time.Timer)}
}

// Now returns time.Now in UTC.
func (c *Real) Now() time.Time {
	return time.Now().UTC()
}

// Schedule runs fn on its own goroutine after delay.
func (c *Real) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	h := c.next
	c.timers[h] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		_, pending := c.timers[h]
		delete(c.timers, h)
		c.mu.Unlock()

		if pending {
			fn()
		}
	})
	return h
}

// Cancel stops the timer behind h.
func (c *Real) Cancel(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.timers[h]
	if !ok {
		return false
	}
	delete(c.timers, h)
	t.Stop()
	return true
}

var _ Clock = (*Real)(nil)
