// Package scheduler provides the timer abstraction the lifecycle engine
// schedules auto-advances on.
//
// ARCHITECTURE:
//
// Single Logical Event Loop:
// Lessons never block or sleep. All waiting is expressed as a callback
// scheduled on a Scheduler, and every callback of one scheduler runs on one
// logical thread:
//   - Loop runs callbacks on its own goroutine, in FIFO order of expiry.
//   - Virtual runs callbacks on the goroutine that calls Advance, in
//     due-time order with ties broken by scheduling order.
//
// Timers returned by both implementations are claimed exactly once: after a
// successful Stop the callback never runs, even if its expiry was already
// queued. Callers must still guard against callbacks that were claimed
// before Stop was called.
package scheduler

import "time"

// Scheduler schedules callbacks and reports the time they observe.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// AfterFunc schedules fn to run once after d. A non-positive d runs fn
	// on the next turn of the loop, never synchronously.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to one scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. Returns false if the
	// callback already ran, is running, or was stopped before.
	Stop() bool
}
