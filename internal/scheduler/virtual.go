package scheduler

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Virtual is a deterministic scheduler driven by explicit Advance calls.
//
// Time only moves when Advance or Drain is called, and callbacks run on
// the caller's goroutine. Use it in tests, scenario replays and
// simulations where identical inputs must produce identical traces.
//
// Thread-safety: methods may be called from any goroutine, but callbacks
// run synchronously inside Advance/Drain.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	clock  *Clock
	timers []*virtualTimer
}

type virtualTimer struct {
	claim
	v   *Virtual
	due time.Time
	seq int64
	fn  func()
}

// NewVirtual creates a virtual scheduler whose clock starts at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start, clock: NewClock()}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc schedules fn at Now()+d.
func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()

	t := &virtualTimer{
		v:   v,
		due: v.now.Add(max(d, 0)),
		seq: v.clock.Next(),
		fn:  fn,
	}
	v.timers = append(v.timers, t)
	return t
}

// Stop removes the timer if it has not fired.
func (t *virtualTimer) Stop() bool {
	if !t.stop() {
		return false
	}
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	t.v.remove(t)
	return true
}

// Advance moves virtual time forward by d, running every callback that
// falls due on the way, including callbacks scheduled by earlier callbacks.
// Returns the number of callbacks run.
func (v *Virtual) Advance(d time.Duration) int {
	v.mu.Lock()
	target := v.now.Add(max(d, 0))
	v.mu.Unlock()
	return v.run(func(due time.Time) bool { return !due.After(target) }, &target)
}

// Drain runs pending callbacks in order until none remain or limit
// callbacks have run, moving virtual time to each callback's due time.
// Returns the number of callbacks run.
func (v *Virtual) Drain(limit int) int {
	ran := 0
	for ran < limit {
		n := v.run(func(time.Time) bool { return true }, nil)
		if n == 0 {
			break
		}
		ran += n
	}
	return ran
}

// run fires due timers one at a time. With a target, it runs every due
// timer and leaves the clock at target. Without one, it returns after the
// first callback and leaves the clock at that callback's due time.
func (v *Virtual) run(due func(time.Time) bool, target *time.Time) int {
	ran := 0
	for {
		v.mu.Lock()
		next := v.earliest()
		if next == nil || !due(next.due) {
			if target != nil {
				v.now = *target
			}
			v.mu.Unlock()
			return ran
		}
		v.remove(next)
		if next.due.After(v.now) {
			v.now = next.due
		}
		v.mu.Unlock()

		if next.fire() {
			next.fn()
			ran++
		}
		if target == nil && ran > 0 {
			return ran
		}
	}
}

// Pending returns the number of scheduled, unfired timers.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.timers)
}

// NextDue returns the due time of the earliest pending timer.
func (v *Virtual) NextDue() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.earliest()
	if next == nil {
		return time.Time{}, false
	}
	return next.due, true
}

// earliest returns the pending timer with the smallest (due, seq).
// Caller must hold v.mu.
func (v *Virtual) earliest() *virtualTimer {
	if len(v.timers) == 0 {
		return nil
	}
	return slices.MinFunc(v.timers, func(a, b *virtualTimer) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}

// remove drops t from the pending set. Caller must hold v.mu.
func (v *Virtual) remove(t *virtualTimer) {
	if i := slices.Index(v.timers, t); i >= 0 {
		v.timers = slices.Delete(v.timers, i, i+1)
	}
}
