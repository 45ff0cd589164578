package scheduler

import "sync/atomic"

const (
	timerPending int32 = iota
	timerStopped
	timerFired
)

// claim is the single-fire state shared by both timer implementations.
type claim struct {
	state atomic.Int32
}

// stop moves pending -> stopped.
func (c *claim) stop() bool {
	return c.state.CompareAndSwap(timerPending, timerStopped)
}

// fire moves pending -> fired. A false return means the callback must not run.
func (c *claim) fire() bool {
	return c.state.CompareAndSwap(timerPending, timerFired)
}
