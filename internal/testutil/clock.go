package testutil

import (
	"sync"
	"time"

	"github.com/roach88/hotspot/internal/clock"
)

// Epoch is the default start time of a VirtualClock.
var Epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

var _ clock.Clock = (*VirtualClock)(nil)

// VirtualClock is a clock.Clock whose time only moves when Advance is called.
//
// Timer callbacks run synchronously on the goroutine calling Advance, in
// deadline order (ties broken by scheduling order). Callbacks may schedule
// new timers; those fire within the same Advance if they fall due.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*virtualTimer
	nextID int
}

type virtualTimer struct {
	clock   *VirtualClock
	id      int
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

// NewVirtualClock creates a virtual clock set to Epoch.
func NewVirtualClock() *VirtualClock {
	return NewVirtualClockAt(Epoch)
}

// NewVirtualClockAt creates a virtual clock set to start.
func NewVirtualClockAt(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *VirtualClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &virtualTimer{clock: c, id: c.nextID, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.done = true
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

func (c *VirtualClock) nextDueLocked(target time.Time) *virtualTimer {
	var next *virtualTimer
	for _, t := range c.timers {
		if t.done || t.stopped || t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.id < next.id) {
			next = t
		}
	}
	return next
}

func (c *VirtualClock) compactLocked() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(c.timers); i++ {
		c.timers[i] = nil
	}
	c.timers = live
}

// Stop cancels the timer.
func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
