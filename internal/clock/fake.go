package clock

import (
	"sort"
	"sync"
	"time"
)

type fakeTimer struct {
	handle Handle
	due    time.Time
	seq    uint64
	fn     func()
}

// Fake is a virtual clock. Time only moves through Advance and Set, and
// due callbacks run synchronously on the caller's goroutine with Now
// equal to their due instant.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	next   Handle
	seq    uint64
	timers map[Handle]*fakeTimer
}

// NewFake creates a virtual clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[Handle]*fakeTimer)}
}

// Now returns the virtual instant.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Schedule registers fn to run once the virtual time reaches now+delay.
func (c *Fake) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	c.seq++
	c.timers[c.next] = &fakeTimer{handle: c.next, due: c.now.Add(delay), seq: c.seq, fn: fn}
	return c.next
}

// Cancel removes a pending callback.
func (c *Fake) Cancel(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.timers[h]; !ok {
		return false
	}
	delete(c.timers, h)
	return true
}

// Pending returns the number of callbacks not yet fired.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward by d, firing due callbacks in order.
func (c *Fake) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the clock to t, firing due callbacks in order. Callbacks
// scheduled by a firing callback run too if they fall due before t.
func (c *Fake) Set(t time.Time) {
	for {
		c.mu.Lock()
		timer := c.nextDue(t)
		if timer == nil {
			if t.After(c.now) {
				c.now = t
			}
			c.mu.Unlock()
			return
		}
		delete(c.timers, timer.handle)
		if timer.due.After(c.now) {
			c.now = timer.due
		}
		c.mu.Unlock()

		timer.fn()
	}
}

// nextDue returns the earliest timer due at or before t. Caller holds mu.
func (c *Fake) nextDue(t time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(c.timers))
	for _, ft := range c.timers {
		if !ft.due.After(t) {
			due = append(due, ft)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

var _ Clock = (*Fake)(nil)
