package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/scheduler"
)

// State is the coarse lifecycle state of an Engine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Cause records what triggered a transition.
type Cause string

const (
	CauseStart  Cause = "start"
	CauseTimer  Cause = "timer"
	CauseManual Cause = "manual"
)

// Transition describes one stage change. From is empty for the transition
// that enters the first stage.
type Transition struct {
	From  Stage
	To    Stage
	Index int
	At    time.Time
	Cause Cause
}

// Completion is delivered once when the terminal stage is entered.
type Completion struct {
	Stage   Stage
	At      time.Time
	Elapsed time.Duration
}

// Stats counts events the engine absorbed instead of acting on.
type Stats struct {
	// Transitions is the number of stage changes, including entering the
	// first stage.
	Transitions int

	// RacesAbsorbed counts scheduled callbacks that fired after their
	// boundary was already crossed or the engine was cancelled.
	RacesAbsorbed int

	// DuplicatesAbsorbed counts advances that arrived when there was
	// nothing to advance: before Start, after completion or cancellation,
	// or from a stage the engine already left.
	DuplicatesAbsorbed int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithName labels the engine's log records, usually with a lesson id.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// pendingTimer is an auto-advance scheduled when the step at from was entered.
type pendingTimer struct {
	from  int
	timer scheduler.Timer
}

// Engine drives a Plan from its first stage to its terminal stage.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - all state changes happen under one mutex, the single transition
//     entry point
//   - notifiers (OnTransition, OnComplete) run after the mutex is released,
//     so they may call back into the engine
//
// INVARIANTS:
//   - the stage index never decreases and never skips a step
//   - the completion notifier runs at most once per engine lifetime
//   - once Cancel returns, no scheduled callback mutates the engine
//   - every scheduled callback carries (timerID, fromIndex) and is dropped
//     unless it is still registered and the engine is still at fromIndex
type Engine struct {
	sched  scheduler.Scheduler
	logger *slog.Logger
	name   string

	mu        sync.Mutex
	plan      Plan
	index     int
	state     State
	startedAt time.Time
	visited   []Stage
	stats     Stats

	pending   map[uint64]pendingTimer
	nextTimer uint64

	observers  []func(Transition)
	onComplete func(Completion)
	completion *Completion
	delivered  bool
}

// New creates an idle engine that schedules auto-advances on sched.
func New(sched scheduler.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		sched:   sched,
		logger:  slog.Default(),
		index:   -1,
		pending: make(map[uint64]pendingTimer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start validates plan, enters its first stage and schedules that stage's
// auto-advance. A plan whose first step is terminal completes immediately.
//
// Starting a cancelled engine is a no-op; starting twice is an
// ALREADY_STARTED ConfigurationError.
func (e *Engine) Start(plan Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	switch e.state {
	case StateCancelled:
		e.mu.Unlock()
		e.logger.Debug("start ignored on cancelled engine", "engine", e.name)
		return nil
	case StateRunning, StateCompleted:
		e.mu.Unlock()
		return ir.NewPlanError(ir.ErrCodeAlreadyStarted, "plan", "engine already started")
	}

	e.plan = slices.Clone(plan)
	e.state = StateRunning
	e.startedAt = e.sched.Now()
	notify := e.enter(0, CauseStart)
	e.mu.Unlock()

	notify()
	return nil
}

// Advance moves to the next stage. It returns false, and counts a
// duplicate, when the engine is not running. A pending auto-advance for
// the boundary being crossed is stopped in the same transition.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	if e.state != StateRunning {
		e.stats.DuplicatesAbsorbed++
		e.mu.Unlock()
		return false
	}
	notify := e.cross(CauseManual)
	e.mu.Unlock()

	notify()
	return true
}

// AdvanceFrom moves to the next stage only if the engine is currently at
// from. Callers pass the stage the user was shown, so an advance racing an
// auto-advance across the same boundary transitions exactly once no matter
// which arrives first.
func (e *Engine) AdvanceFrom(from Stage) bool {
	e.mu.Lock()
	if e.state != StateRunning || e.plan[e.index].Stage != from {
		e.stats.DuplicatesAbsorbed++
		e.mu.Unlock()
		e.logger.Debug("advance absorbed", "engine", e.name, "from", from)
		return false
	}
	notify := e.cross(CauseManual)
	e.mu.Unlock()

	notify()
	return true
}

// AdvanceIf is AdvanceFrom with a commit step. An empty from matches any
// stage. commit runs under the engine mutex once the boundary check has
// passed; returning false aborts the advance. Because the commit and the
// crossing happen together, whatever commit records is never left behind
// by an advance that lost a race. commit must not call into the engine.
func (e *Engine) AdvanceIf(from Stage, commit func() bool) bool {
	e.mu.Lock()
	if e.state != StateRunning ||
		(from != "" && e.plan[e.index].Stage != from) ||
		(commit != nil && !commit()) {
		e.stats.DuplicatesAbsorbed++
		e.mu.Unlock()
		e.logger.Debug("advance absorbed", "engine", e.name, "from", from)
		return false
	}
	notify := e.cross(CauseManual)
	e.mu.Unlock()

	notify()
	return true
}

// Cancel stops every pending auto-advance and makes the engine inert.
// It is synchronous and idempotent, and it never affects a completion that
// was already delivered. Cancelling a completed engine only releases its
// timers.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseTimers()
	if e.state == StateCancelled || e.state == StateCompleted {
		return
	}
	e.state = StateCancelled
	e.logger.Debug("engine cancelled", "engine", e.name, "stage", e.stageLocked())
}

// OnComplete registers the completion notifier, replacing any earlier one
// that has not fired. If the terminal stage was already reached and no
// notifier has fired yet, fn runs immediately. Once a completion has been
// delivered, later registrations never fire.
func (e *Engine) OnComplete(fn func(Completion)) {
	e.mu.Lock()
	if e.delivered {
		e.mu.Unlock()
		return
	}
	e.onComplete = fn
	if fn == nil || e.completion == nil {
		e.mu.Unlock()
		return
	}
	e.delivered = true
	c := *e.completion
	e.mu.Unlock()

	fn(c)
}

// OnTransition adds an observer called after every transition, including
// entering the first stage.
func (e *Engine) OnTransition(fn func(Transition)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// Status is a consistent view of the engine's position.
type Status struct {
	Stage Stage
	Index int
	State State
}

// Status returns stage, index and state read under one lock.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Stage: e.stageLocked(), Index: e.index, State: e.state}
}

// Stage returns the current stage, or "" before Start.
func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stageLocked()
}

// Index returns the current step index, or -1 before Start.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Visited returns the stages entered so far, in order.
func (e *Engine) Visited() []Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.visited)
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Pending returns the number of auto-advances still registered.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// cross moves from the current step to the next one. Caller holds e.mu and
// has checked the engine is running, which implies the current step is not
// terminal.
func (e *Engine) cross(cause Cause) func() {
	e.releaseTimersFrom(e.index)
	return e.enter(e.index+1, cause)
}

// enter makes plan[index] current and returns the notifications to run once
// the mutex is released. Caller holds e.mu.
func (e *Engine) enter(index int, cause Cause) func() {
	from := e.stageLocked()
	step := e.plan[index]
	now := e.sched.Now()

	e.index = index
	e.visited = append(e.visited, step.Stage)
	e.stats.Transitions++

	tr := Transition{From: from, To: step.Stage, Index: index, At: now, Cause: cause}
	observers := slices.Clone(e.observers)

	e.logger.Debug("stage entered",
		"engine", e.name,
		"from", from,
		"to", step.Stage,
		"index", index,
		"cause", cause,
	)

	var complete func(Completion)
	var c Completion
	switch {
	case step.Terminal:
		e.state = StateCompleted
		e.releaseTimers()
		c = Completion{Stage: step.Stage, At: now, Elapsed: now.Sub(e.startedAt)}
		e.completion = &c
		if e.onComplete != nil && !e.delivered {
			e.delivered = true
			complete = e.onComplete
		}
		e.logger.Info("plan completed",
			"engine", e.name,
			"stage", step.Stage,
			"elapsed", c.Elapsed,
		)
	case step.AutoAdvance > 0:
		e.schedule(index, step.AutoAdvance)
	}

	return func() {
		for _, fn := range observers {
			fn(tr)
		}
		if complete != nil {
			complete(c)
		}
	}
}

// schedule registers an auto-advance away from the step at from.
// Caller holds e.mu.
func (e *Engine) schedule(from int, d time.Duration) {
	e.nextTimer++
	id := e.nextTimer
	timer := e.sched.AfterFunc(d, func() { e.fire(id, from) })
	e.pending[id] = pendingTimer{from: from, timer: timer}
}

// fire is the body of every scheduled auto-advance.
func (e *Engine) fire(id uint64, from int) {
	e.mu.Lock()
	_, live := e.pending[id]
	delete(e.pending, id)
	if !live || e.state != StateRunning || e.index != from {
		e.stats.RacesAbsorbed++
		e.mu.Unlock()
		e.logger.Debug("stale auto-advance absorbed",
			"engine", e.name,
			"timer", id,
			"from_index", from,
		)
		return
	}
	notify := e.enter(from+1, CauseTimer)
	e.mu.Unlock()

	notify()
}

// releaseTimers stops and forgets every pending timer. Caller holds e.mu.
func (e *Engine) releaseTimers() {
	for id, p := range e.pending {
		p.timer.Stop()
		delete(e.pending, id)
	}
}

// releaseTimersFrom stops the timers scheduled for leaving the step at
// index. Caller holds e.mu.
func (e *Engine) releaseTimersFrom(index int) {
	for id, p := range e.pending {
		if p.from == index {
			p.timer.Stop()
			delete(e.pending, id)
		}
	}
}

func (e *Engine) stageLocked() Stage {
	if e.index < 0 {
		return ""
	}
	return e.plan[e.index].Stage
}
