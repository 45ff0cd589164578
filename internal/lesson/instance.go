package lesson

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/scheduler"
)

// RecipeSource resolves a tuple to its render recipe. compositor.Cache
// implements it.
type RecipeSource interface {
	Recipe(tuple ir.SelectorTuple) (ir.RenderRecipe, error)
}

// RecipeFunc adapts a function to RecipeSource.
type RecipeFunc func(tuple ir.SelectorTuple) (ir.RenderRecipe, error)

// Recipe calls f.
func (f RecipeFunc) Recipe(tuple ir.SelectorTuple) (ir.RenderRecipe, error) {
	return f(tuple)
}

// Snapshot is the observable state of an instance at one moment.
type Snapshot struct {
	LessonID     string          `json:"lesson_id"`
	RunID        string          `json:"run_id"`
	Stage        engine.Stage    `json:"stage"`
	Index        int             `json:"index"`
	State        string          `json:"state"`
	Recipe       ir.RenderRecipe `json:"recipe"`
	ChosenBranch string          `json:"chosen_branch,omitempty"`

	// Outcome is revealed once the terminal stage is reached.
	Outcome string `json:"outcome,omitempty"`
}

// Option configures an Instance.
type Option func(*config)

type config struct {
	sink   Sink
	logger *slog.Logger
	runIDs RunIDGenerator
}

// WithSink sets where the completion event goes. Default: discarded.
func WithSink(sink Sink) Option {
	return func(c *config) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithLogger sets the instance and engine logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(c *config) {
		if gen != nil {
			c.runIDs = gen
		}
	}
}

// Instance is one mounted, running lesson.
//
// Thread-safety model:
//   - Dispatch, Snapshot, Subscribe and Unmount are safe from any goroutine
//   - stage changes go through the owned engine, the single transition
//     entry point
//   - subscribers and the sink run outside the instance lock
//
// INVARIANTS:
//   - the recipe source is called exactly once, at Mount
//   - at most one CompletionEvent is emitted per instance
//   - after Unmount returns, no scheduled callback touches the instance
type Instance struct {
	lesson  Lesson
	recipe  ir.RenderRecipe
	runID   string
	outcome string
	engine  *engine.Engine
	sink    Sink
	logger  *slog.Logger

	mu        sync.Mutex
	unmounted bool
	subs      map[int]func(Snapshot)
	nextSub   int

	// choiceMu guards chosen. It is a leaf lock: it is taken under the
	// engine mutex and nothing is acquired while it is held.
	choiceMu sync.Mutex
	chosen   string
}

// Mount validates l, resolves its recipe and starts its plan on sched.
// Validation and recipe failures are ConfigurationErrors carrying the
// lesson id; nothing is scheduled when Mount fails.
func Mount(l Lesson, recipes RecipeSource, sched scheduler.Scheduler, opts ...Option) (*Instance, error) {
	cfg := config{
		sink:   discardSink{},
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	recipe, err := recipes.Recipe(l.Tuple)
	if err != nil {
		return nil, ir.WithLesson(err, l.ID)
	}

	inst := &Instance{
		lesson: l,
		recipe: recipe,
		runID:  cfg.runIDs.Generate(),
		sink:   cfg.sink,
		subs:   make(map[int]func(Snapshot)),
	}
	inst.logger = cfg.logger.With("lesson", l.ID, "run", inst.runID)
	if idx := recipe.ChooseOutcome(len(l.Outcomes)); idx >= 0 {
		inst.outcome = l.Outcomes[idx]
	}

	inst.engine = engine.New(sched,
		engine.WithLogger(cfg.logger),
		engine.WithName(l.ID),
	)
	inst.engine.OnTransition(func(engine.Transition) { inst.publish() })
	inst.engine.OnComplete(inst.complete)

	inst.logger.Info("lesson mounted",
		"tuple", l.Tuple.String(),
		"motif", recipe.MotifFamily,
		"stages", len(l.Plan),
	)
	if err := inst.engine.Start(l.Plan); err != nil {
		return nil, ir.WithLesson(err, l.ID)
	}
	return inst, nil
}

// Dispatch applies a normalized signal. An unknown branch is an
// UNKNOWN_BRANCH ConfigurationError. Signals after Unmount, advances past
// the terminal stage and repeat choices are absorbed. A choice scoped to a
// stage the lesson already left records nothing.
func (i *Instance) Dispatch(sig Signal) error {
	i.mu.Lock()
	if i.unmounted {
		i.mu.Unlock()
		i.logger.Debug("signal after unmount absorbed", "kind", sig.Kind)
		return nil
	}

	switch sig.Kind {
	case SignalAdvance:
		i.mu.Unlock()
		i.advance(sig.From)
		return nil

	case SignalChoose:
		if !i.lesson.HasBranch(sig.Branch) {
			i.mu.Unlock()
			return &ir.ConfigurationError{
				Code:     ir.ErrCodeUnknownBranch,
				Field:    "branch",
				Message:  fmt.Sprintf("branch %q is not offered", sig.Branch),
				LessonID: i.lesson.ID,
			}
		}
		i.mu.Unlock()

		// The branch is recorded only together with the crossing it causes.
		if !i.engine.AdvanceIf(sig.From, func() bool { return i.recordChoice(sig.Branch) }) {
			i.logger.Debug("choice absorbed", "branch", sig.Branch, "from", sig.From, "chosen", i.choice())
			return nil
		}
		i.logger.Debug("branch chosen", "branch", sig.Branch)
		return nil

	default:
		i.mu.Unlock()
		return &ir.ConfigurationError{
			Code:     ir.ErrCodeUnknownSignal,
			Field:    "kind",
			Message:  fmt.Sprintf("unknown signal kind %q", sig.Kind),
			LessonID: i.lesson.ID,
		}
	}
}

// Snapshot returns the instance's current observable state.
func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every transition and
// recorded choice. The returned function removes the subscription.
func (i *Instance) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.unmounted || fn == nil {
		return func() {}
	}
	id := i.nextSub
	i.nextSub++
	i.subs[id] = fn
	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.subs, id)
	}
}

// Unmount cancels every pending callback and detaches subscribers. It is
// idempotent and safe to call in any state, including after completion.
func (i *Instance) Unmount() {
	i.engine.Cancel()

	i.mu.Lock()
	first := !i.unmounted
	i.unmounted = true
	clear(i.subs)
	i.mu.Unlock()

	if first {
		i.logger.Debug("lesson unmounted", "stage", i.engine.Stage())
	}
}

// Lesson returns the mounted lesson record.
func (i *Instance) Lesson() Lesson { return i.lesson }

// RunID returns the id correlating this instance with its completion event.
func (i *Instance) RunID() string { return i.runID }

// Recipe returns the recipe resolved at Mount.
func (i *Instance) Recipe() ir.RenderRecipe { return i.recipe }

// Visited returns the stages entered so far.
func (i *Instance) Visited() []engine.Stage { return i.engine.Visited() }

// Stats returns the owned engine's counters.
func (i *Instance) Stats() engine.Stats { return i.engine.Stats() }

func (i *Instance) advance(from engine.Stage) bool {
	if from != "" {
		return i.engine.AdvanceFrom(from)
	}
	return i.engine.Advance()
}

// publish sends the current snapshot to every subscriber.
func (i *Instance) publish() {
	i.mu.Lock()
	if i.unmounted || len(i.subs) == 0 {
		i.mu.Unlock()
		return
	}
	snap := i.snapshotLocked()
	ids := slices.Sorted(maps.Keys(i.subs))
	fns := make([]func(Snapshot), len(ids))
	for n, id := range ids {
		fns[n] = i.subs[id]
	}
	i.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// complete builds and records the completion event. The engine guarantees
// it runs at most once.
func (i *Instance) complete(c engine.Completion) {
	i.mu.Lock()
	ev := CompletionEvent{
		LessonID:     i.lesson.ID,
		RunID:        i.runID,
		Tuple:        i.lesson.Tuple,
		RecipeID:     i.recipe.ID,
		FinalStage:   c.Stage,
		ChosenBranch: i.choice(),
		Outcome:      i.outcome,
		ElapsedMs:    c.Elapsed.Milliseconds(),
		CompletedAt:  c.At.UTC(),
	}
	i.mu.Unlock()

	i.logger.Info("lesson completed",
		"branch", ev.ChosenBranch,
		"outcome", ev.Outcome,
		"elapsed_ms", ev.ElapsedMs,
	)
	if err := i.sink.Record(context.Background(), ev); err != nil {
		// The lesson has already finished; sink failures are only logged.
		i.logger.Error("completion sink failed", "error", err)
	}
}

func (i *Instance) snapshotLocked() Snapshot {
	st := i.engine.Status()
	snap := Snapshot{
		LessonID:     i.lesson.ID,
		RunID:        i.runID,
		Stage:        st.Stage,
		Index:        st.Index,
		State:        st.State.String(),
		Recipe:       i.recipe,
		ChosenBranch: i.choice(),
	}
	if st.State == engine.StateCompleted {
		snap.Outcome = i.outcome
	}
	return snap
}

// recordChoice stores branch unless a branch was already chosen. It runs
// under the engine mutex, inside AdvanceIf.
func (i *Instance) recordChoice(branch string) bool {
	i.choiceMu.Lock()
	defer i.choiceMu.Unlock()
	if i.chosen != "" {
		return false
	}
	i.chosen = branch
	return true
}

func (i *Instance) choice() string {
	i.choiceMu.Lock()
	defer i.choiceMu.Unlock()
	return i.chosen
}
