package engine

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/scheduler"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func scenarioPlan() Plan {
	return Plan{
		Auto(StageDormant, 2000*time.Millisecond),
		Manual(StageEngaged),
		Auto(StageResolution, 1500*time.Millisecond),
		Terminal(StageAfterglow),
	}
}

// recorder collects notifications from an engine.
type recorder struct {
	mu          sync.Mutex
	transitions []Transition
	completions []Completion
}

func record(e *Engine) *recorder {
	r := &recorder{}
	e.OnTransition(func(tr Transition) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.transitions = append(r.transitions, tr)
	})
	e.OnComplete(func(c Completion) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.completions = append(r.completions, c)
	})
	return r
}

func (r *recorder) causes() []Cause {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Cause, len(r.transitions))
	for i, tr := range r.transitions {
		out[i] = tr.Cause
	}
	return out
}

func (r *recorder) completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completions)
}

// leakyScheduler hands out timers whose Stop reports success but leaves the
// callback runnable, modelling a callback already claimed by its loop.
type leakyScheduler struct {
	now time.Time
	fns []func()
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return true }

func (s *leakyScheduler) Now() time.Time { return s.now }

func (s *leakyScheduler) AfterFunc(_ time.Duration, fn func()) scheduler.Timer {
	s.fns = append(s.fns, fn)
	return leakyTimer{}
}

func TestEngine_ScenarioA(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet(), WithName("scenario-a"))
	rec := record(e)

	require.NoError(t, e.Start(scenarioPlan()))
	assert.Equal(t, StageDormant, e.Stage())
	assert.Equal(t, StateRunning, e.State())
	assert.Equal(t, 1, e.Pending())

	v.Advance(1999 * time.Millisecond)
	assert.Equal(t, StageDormant, e.Stage())

	v.Advance(time.Millisecond)
	assert.Equal(t, StageEngaged, e.Stage())
	assert.Zero(t, e.Pending())

	// engaged has no auto-advance and waits for the host
	v.Advance(10 * time.Second)
	assert.Equal(t, StageEngaged, e.Stage())

	assert.True(t, e.Advance())
	assert.Equal(t, StageResolution, e.Stage())
	assert.Equal(t, 1, e.Pending())

	v.Advance(1500 * time.Millisecond)
	assert.Equal(t, StageAfterglow, e.Stage())
	assert.Equal(t, StateCompleted, e.State())
	require.Equal(t, 1, rec.completed())
	assert.Equal(t, StageAfterglow, rec.completions[0].Stage)
	assert.Equal(t, 13500*time.Millisecond, rec.completions[0].Elapsed)

	assert.False(t, e.Advance())
	assert.False(t, e.Advance())
	assert.False(t, e.AdvanceFrom(StageResolution))
	assert.Equal(t, StageAfterglow, e.Stage())
	assert.Equal(t, 1, rec.completed())

	assert.Equal(t, []Stage{StageDormant, StageEngaged, StageResolution, StageAfterglow}, e.Visited())
	assert.Equal(t, []Cause{CauseStart, CauseTimer, CauseManual, CauseTimer}, rec.causes())
	assert.Equal(t, Stats{Transitions: 4, DuplicatesAbsorbed: 3}, e.Stats())
	assert.Zero(t, v.Pending())
}

func TestEngine_ScenarioB(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	rec := record(e)

	plan := Plan{
		Auto(StageDormant, 2000*time.Millisecond),
		Auto(StageEngaged, 3000*time.Millisecond),
		Auto(StageResolution, 1500*time.Millisecond),
		Terminal(StageAfterglow),
	}
	require.NoError(t, e.Start(plan))
	v.Advance(2 * time.Second)
	require.Equal(t, StageEngaged, e.Stage())
	require.Equal(t, 1, v.Pending())

	e.Cancel()
	assert.Equal(t, StateCancelled, e.State())
	assert.Zero(t, e.Pending())
	assert.Zero(t, v.Pending())

	assert.Zero(t, v.Advance(time.Hour))
	assert.Equal(t, StageEngaged, e.Stage())
	assert.Zero(t, rec.completed())
	assert.Equal(t, []Stage{StageDormant, StageEngaged}, e.Visited())
}

func TestEngine_SingleStepPlanCompletesImmediately(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	rec := record(e)

	require.NoError(t, e.Start(Plan{Terminal(StageAfterglow)}))

	assert.Equal(t, StateCompleted, e.State())
	assert.Equal(t, 0, e.Index())
	require.Equal(t, 1, rec.completed())
	assert.Zero(t, rec.completions[0].Elapsed)
}

func TestEngine_StartTwiceIsAlreadyStarted(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())
	require.NoError(t, e.Start(scenarioPlan()))

	err := e.Start(scenarioPlan())
	assert.Equal(t, ir.ErrCodeAlreadyStarted, ir.ConfigErrorCodeOf(err))
	assert.Equal(t, StageDormant, e.Stage())
}

func TestEngine_StartRejectsInvalidPlan(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())

	err := e.Start(Plan{Manual("a")})
	assert.Equal(t, ir.ErrCodeTerminalStage, ir.ConfigErrorCodeOf(err))
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, -1, e.Index())
}

func TestEngine_StartAfterCancelIsNoop(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	rec := record(e)

	e.Cancel()
	require.NoError(t, e.Start(scenarioPlan()))

	assert.Equal(t, StateCancelled, e.State())
	assert.Equal(t, Stage(""), e.Stage())
	assert.Zero(t, v.Pending())
	assert.Empty(t, rec.causes())
}

func TestEngine_AdvanceBeforeStartIsAbsorbed(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())

	assert.False(t, e.Advance())
	assert.False(t, e.AdvanceFrom(StageDormant))
	assert.Equal(t, 2, e.Stats().DuplicatesAbsorbed)
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_ManualAdvanceStopsPendingTimer(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	rec := record(e)

	require.NoError(t, e.Start(scenarioPlan()))
	v.Advance(500 * time.Millisecond)
	require.True(t, e.Advance())
	assert.Equal(t, StageEngaged, e.Stage())
	assert.Zero(t, v.Pending())

	// the dormant timer would have fired here; engaged must not be skipped
	v.Advance(5 * time.Second)
	assert.Equal(t, StageEngaged, e.Stage())
	assert.Equal(t, []Cause{CauseStart, CauseManual}, rec.causes())
	assert.Zero(t, e.Stats().RacesAbsorbed)
}

func TestEngine_RaceManualThenTimer(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())

	require.NoError(t, e.Start(scenarioPlan()))
	v.Advance(2000*time.Millisecond - time.Nanosecond)

	require.True(t, e.AdvanceFrom(StageDormant))
	v.Advance(time.Nanosecond)

	assert.Equal(t, StageEngaged, e.Stage())
	assert.Equal(t, []Stage{StageDormant, StageEngaged}, e.Visited())
	assert.Equal(t, 2, e.Stats().Transitions)
}

func TestEngine_RaceTimerThenManual(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())

	require.NoError(t, e.Start(scenarioPlan()))
	v.Advance(2000 * time.Millisecond)

	assert.False(t, e.AdvanceFrom(StageDormant))
	assert.Equal(t, StageEngaged, e.Stage())
	assert.Equal(t, []Stage{StageDormant, StageEngaged}, e.Visited())
	assert.Equal(t, 1, e.Stats().DuplicatesAbsorbed)
}

func TestEngine_AdvanceIfCommitsOnlyWithCrossing(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	require.NoError(t, e.Start(scenarioPlan()))
	v.Advance(2000 * time.Millisecond)

	commits := 0
	commit := func() bool { commits++; return true }

	assert.False(t, e.AdvanceIf(StageDormant, commit))
	assert.Equal(t, 0, commits)
	assert.Equal(t, StageEngaged, e.Stage())

	assert.True(t, e.AdvanceIf(StageEngaged, commit))
	assert.Equal(t, 1, commits)
	assert.Equal(t, StageResolution, e.Stage())
	assert.Equal(t, 1, e.Stats().DuplicatesAbsorbed)
}

func TestEngine_AdvanceIfRefusedCommitStays(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	require.NoError(t, e.Start(scenarioPlan()))

	assert.False(t, e.AdvanceIf("", func() bool { return false }))
	assert.Equal(t, StageDormant, e.Stage())
	assert.True(t, e.AdvanceIf("", nil))
	assert.Equal(t, StageEngaged, e.Stage())
}

func TestEngine_ClaimedCallbackAfterManualAdvanceIsAbsorbed(t *testing.T) {
	s := &leakyScheduler{now: epoch}
	e := New(s, quiet())
	rec := record(e)

	require.NoError(t, e.Start(scenarioPlan()))
	require.Len(t, s.fns, 1)
	require.True(t, e.Advance())

	s.fns[0]()

	assert.Equal(t, StageEngaged, e.Stage())
	assert.Equal(t, 1, e.Stats().RacesAbsorbed)
	assert.Equal(t, []Cause{CauseStart, CauseManual}, rec.causes())
}

func TestEngine_ClaimedCallbackAfterCancelIsAbsorbed(t *testing.T) {
	s := &leakyScheduler{now: epoch}
	e := New(s, quiet())
	rec := record(e)

	require.NoError(t, e.Start(scenarioPlan()))
	e.Cancel()
	s.fns[0]()

	assert.Equal(t, StageDormant, e.Stage())
	assert.Equal(t, StateCancelled, e.State())
	assert.Equal(t, 1, e.Stats().RacesAbsorbed)
	assert.Zero(t, rec.completed())
}

func TestEngine_CallbackFiringTwiceMovesOnce(t *testing.T) {
	s := &leakyScheduler{now: epoch}
	e := New(s, quiet())

	require.NoError(t, e.Start(Plan{Auto("a", time.Second), Manual("b"), Terminal("c")}))
	s.fns[0]()
	s.fns[0]()

	assert.Equal(t, Stage("b"), e.Stage())
	assert.Equal(t, 1, e.Stats().RacesAbsorbed)
}

func TestEngine_CancelIsIdempotentInEveryState(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		e := New(scheduler.NewVirtual(epoch), quiet())
		e.Cancel()
		e.Cancel()
		assert.Equal(t, StateCancelled, e.State())
	})

	t.Run("running", func(t *testing.T) {
		v := scheduler.NewVirtual(epoch)
		e := New(v, quiet())
		require.NoError(t, e.Start(scenarioPlan()))
		e.Cancel()
		e.Cancel()
		assert.Equal(t, StateCancelled, e.State())
		assert.Zero(t, v.Pending())
	})

	t.Run("completed", func(t *testing.T) {
		v := scheduler.NewVirtual(epoch)
		e := New(v, quiet())
		rec := record(e)
		require.NoError(t, e.Start(Plan{Manual("a"), Terminal("b")}))
		require.True(t, e.Advance())

		e.Cancel()
		e.Cancel()
		assert.Equal(t, StateCompleted, e.State())
		assert.Equal(t, 1, rec.completed())
	})
}

func TestEngine_LateOnCompleteFiresOnce(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())
	require.NoError(t, e.Start(Plan{Manual("a"), Terminal("b")}))
	require.True(t, e.Advance())

	var first, second int
	e.OnComplete(func(Completion) { first++ })
	e.OnComplete(func(Completion) { second++ })

	assert.Equal(t, 1, first)
	assert.Zero(t, second)
}

func TestEngine_OnCompleteReplacedBeforeDelivery(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())
	var first, second int
	e.OnComplete(func(Completion) { first++ })
	e.OnComplete(func(Completion) { second++ })

	require.NoError(t, e.Start(Plan{Terminal("done")}))

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestEngine_NotifiersMayReenter(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())

	// skip through every manual stage from inside the observer
	e.OnTransition(func(tr Transition) {
		if tr.To == "b" {
			e.AdvanceFrom("b")
		}
	})
	var stageAtCompletion Stage
	e.OnComplete(func(Completion) {
		stageAtCompletion = e.Stage()
		e.Cancel()
	})

	require.NoError(t, e.Start(Plan{Auto("a", time.Second), Manual("b"), Terminal("c")}))
	v.Advance(time.Second)

	assert.Equal(t, Stage("c"), stageAtCompletion)
	assert.Equal(t, StateCompleted, e.State())
	assert.Equal(t, []Stage{"a", "b", "c"}, e.Visited())
}

func TestEngine_TransitionsCarryTime(t *testing.T) {
	v := scheduler.NewVirtual(epoch)
	e := New(v, quiet())
	rec := record(e)

	require.NoError(t, e.Start(scenarioPlan()))
	v.Advance(3 * time.Second)

	require.Len(t, rec.transitions, 2)
	assert.Equal(t, Transition{To: StageDormant, Index: 0, At: epoch, Cause: CauseStart}, rec.transitions[0])
	assert.Equal(t, Transition{
		From:  StageDormant,
		To:    StageEngaged,
		Index: 1,
		At:    epoch.Add(2 * time.Second),
		Cause: CauseTimer,
	}, rec.transitions[1])
}

func TestEngine_ConcurrentAdvancesCrossOnce(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())
	require.NoError(t, e.Start(Plan{Manual("a"), Manual("b"), Terminal("c")}))

	const callers = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.AdvanceFrom("a") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, Stage("b"), e.Stage())
	assert.Equal(t, callers-1, e.Stats().DuplicatesAbsorbed)
}

func TestEngine_RealLoopRaceTransitionsOnce(t *testing.T) {
	loop := scheduler.NewLoop(scheduler.WithLoopLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	e := New(loop, quiet())
	completed := make(chan Completion, 2)
	e.OnComplete(func(c Completion) { completed <- c })

	require.NoError(t, e.Start(Plan{Auto("a", 2*time.Millisecond), Terminal("b")}))
	time.Sleep(2 * time.Millisecond)
	e.AdvanceFrom("a")

	select {
	case c := <-completed:
		assert.Equal(t, Stage("b"), c.Stage)
	case <-time.After(2 * time.Second):
		t.Fatal("plan did not complete")
	}

	// let any claimed callback drain through the loop
	require.True(t, loop.Post(func() {}))
	require.Eventually(t, func() bool { return loop.Len() == 0 }, time.Second, time.Millisecond)

	assert.Equal(t, []Stage{"a", "b"}, e.Visited())
	assert.Equal(t, 2, e.Stats().Transitions)
	assert.Len(t, completed, 0)
}

func randomPlan(r *rand.Rand) Plan {
	n := 1 + r.IntN(5)
	plan := make(Plan, n)
	for i := range n - 1 {
		plan[i] = Step{Stage: Stage(string(rune('a' + i)))}
		if r.IntN(2) == 0 {
			plan[i].AutoAdvance = time.Duration(1+r.IntN(10)) * 100 * time.Millisecond
		}
	}
	plan[n-1] = Terminal(Stage(string(rune('a' + n - 1))))
	return plan
}

func TestEngine_MonotonicUnderRandomSignals(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for trial := range 300 {
		plan := randomPlan(r)
		v := scheduler.NewVirtual(epoch)
		e := New(v, quiet())

		completions := 0
		e.OnComplete(func(Completion) { completions++ })
		var indices []int
		e.OnTransition(func(tr Transition) { indices = append(indices, tr.Index) })

		require.NoError(t, e.Start(plan), "trial %d", trial)
		for range 30 {
			switch r.IntN(6) {
			case 0:
				e.Advance()
			case 1:
				e.AdvanceFrom(plan[r.IntN(len(plan))].Stage)
			case 2, 3, 4:
				v.Advance(time.Duration(r.IntN(1500)) * time.Millisecond)
			case 5:
				if r.IntN(8) == 0 {
					e.Cancel()
				}
			}
		}

		for i, idx := range indices {
			require.Equal(t, i, idx, "trial %d: index skipped or repeated", trial)
		}
		require.Equal(t, plan.Stages()[:len(indices)], e.Visited(), "trial %d", trial)
		require.LessOrEqual(t, completions, 1, "trial %d", trial)
		require.Equal(t, e.State() == StateCompleted, completions == 1, "trial %d", trial)
		if e.State() != StateRunning {
			require.Zero(t, e.Pending(), "trial %d", trial)
			require.Zero(t, v.Pending(), "trial %d", trial)
		}
	}
}

func TestEngine_StatusIsConsistent(t *testing.T) {
	e := New(scheduler.NewVirtual(epoch), quiet())
	assert.Equal(t, Status{Index: -1, State: StateIdle}, e.Status())

	require.NoError(t, e.Start(scenarioPlan()))
	assert.Equal(t, Status{Stage: StageDormant, Index: 0, State: StateRunning}, e.Status())
}
