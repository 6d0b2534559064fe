// Package clock provides the time sources used by the editor and the
// synchronization policy.
//
// Two kinds of time are kept apart:
//   - Seq is a logical clock. ChangeRecords are stamped from it, so ordering
//     never depends on wall-clock resolution.
//   - Clock is wall time plus timers. Debounce windows are scheduled through
//     it, so tests can substitute a virtual clock and advance it by hand.
package clock

import (
	"sync/atomic"
	"time"
)

// Timer is a pending callback scheduled by a Clock.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// Clock is a source of wall time and one-shot timers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine (or, for virtual clocks, on the
	// goroutine that advances time) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Clock backed by package time.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Seq is a monotonic logical clock for ordering change records.
//
// Thread-safety: Seq is safe for concurrent use (atomic operations).
type Seq struct {
	seq atomic.Int64
}

// NewSeq creates a logical clock starting at 0.
func NewSeq() *Seq {
	return &Seq{}
}

// NewSeqAt creates a logical clock starting at a specific value.
func NewSeqAt(start int64) *Seq {
	s := &Seq{}
	s.seq.Store(start)
	return s
}

// Next returns the next sequence number. Each call returns a unique,
// increasing value.
func (s *Seq) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (s *Seq) Current() int64 {
	return s.seq.Load()
}
