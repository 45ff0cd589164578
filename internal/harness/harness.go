package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/navicue/internal/catalog"
	"github.com/roach88/navicue/internal/compositor"
	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/lesson"
	"github.com/roach88/navicue/internal/scheduler"
	"github.com/roach88/navicue/internal/testutil"
)

// epoch is the virtual time every scenario mounts at.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Option configures a scenario run.
type Option func(*harness)

// WithLogger routes lesson and harness logs to logger. Runs are silent
// by default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// harness executes one scenario on a virtual scheduler.
type harness struct {
	virtual *scheduler.Virtual
	clock   *scheduler.Clock
	sink    *testutil.RecordingSink
	result  *Result
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh virtual scheduler with a fixed run id, so
// the same scenario always produces the same trace.
//
// Execution flow:
// 1. Resolve the lesson from the scenario's catalog (or the built-in one)
// 2. Mount it, recording the initial snapshot
// 3. Execute steps, recording snapshots, signals, waits and completions
// 4. Capture the final state and unmount
// 5. Evaluate assertions
//
// An error is returned only when the scenario cannot run at all; step and
// assertion failures are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	l, err := resolveLesson(scenario)
	if err != nil {
		return nil, err
	}

	h := &harness{
		virtual: scheduler.NewVirtual(epoch),
		clock:   scheduler.NewClock(),
		sink:    testutil.NewRecordingSink(),
		result:  NewResult(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	inst, err := lesson.Mount(l, compositor.NewCache(compositor.DefaultTables()), h.virtual,
		lesson.WithSink(lesson.SinkFunc(h.sinkCompletion)),
		lesson.WithRunIDs(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		lesson.WithLogger(h.logger.With("scenario", scenario.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mount lesson %q: %w", l.ID, err)
	}
	defer inst.Unmount()

	h.recordSnapshot(EventMount, inst.Snapshot())
	inst.Subscribe(func(s lesson.Snapshot) { h.recordSnapshot(EventSnapshot, s) })

	for i, step := range scenario.Steps {
		h.execute(i, step, inst)
	}

	result := h.result
	result.Final = inst.Snapshot()
	result.Visited = inst.Visited()
	result.Stats = inst.Stats()
	result.Pending = h.virtual.Pending()
	result.Completions = h.sink.Events()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// resolveLesson finds the scenario's lesson and applies its plan override.
func resolveLesson(scenario *Scenario) (lesson.Lesson, error) {
	var cat *catalog.Catalog
	if scenario.Catalog == "" {
		var err error
		cat, err = catalog.Builtin()
		if err != nil {
			return lesson.Lesson{}, fmt.Errorf("failed to load built-in catalog: %w", err)
		}
	} else {
		var errs []error
		cat, errs = catalog.Load(scenario.Catalog, catalog.LoadModeCollectAll)
		if len(errs) > 0 {
			return lesson.Lesson{}, fmt.Errorf("failed to load catalog %s: %w", scenario.Catalog, errors.Join(errs...))
		}
	}

	l, ok := cat.Lookup(scenario.Lesson)
	if !ok {
		return lesson.Lesson{}, fmt.Errorf("lesson %q not found in catalog", scenario.Lesson)
	}
	if scenario.Plan != nil {
		l.Plan = scenario.Plan
	}
	return l, nil
}

// execute runs one step. Dispatch errors are checked against the step's
// expect_error and reported as result errors, never returned.
func (h *harness) execute(index int, step Step, inst *lesson.Instance) {
	switch {
	case step.Wait > 0:
		fired := h.virtual.Advance(step.Wait)
		h.record(TraceEvent{Type: EventWait, Ms: step.Wait.Milliseconds(), Fired: fired})
		h.logger.Debug("wait step completed", "step", index, "ms", step.Wait.Milliseconds(), "fired", fired)

	case step.Unmount:
		inst.Unmount()
		h.recordSnapshot(EventUnmount, inst.Snapshot())
		h.logger.Debug("unmount step completed", "step", index)

	default:
		sig := lesson.Signal{
			Kind:   lesson.SignalKind(step.Signal),
			Branch: step.Branch,
			From:   engine.Stage(step.From),
		}
		// The signal is traced before the snapshots it causes.
		pos := h.record(TraceEvent{Type: EventSignal, Signal: step.Signal, Branch: step.Branch, From: step.From})
		err := inst.Dispatch(sig)
		code := string(ir.ConfigErrorCodeOf(err))
		if err != nil && code == "" {
			code = err.Error()
		}
		h.result.Trace[pos].Error = code

		if code != step.ExpectError {
			h.result.AddError(fmt.Sprintf("steps[%d]: signal %s returned error %q, expected %q",
				index, step.Signal, code, step.ExpectError))
		}
		h.logger.Debug("signal step completed", "step", index, "signal", step.Signal, "error", code)
	}
}

func (h *harness) recordSnapshot(eventType string, s lesson.Snapshot) {
	h.record(TraceEvent{
		Type:    eventType,
		Stage:   string(s.Stage),
		Index:   s.Index,
		State:   s.State,
		Branch:  s.ChosenBranch,
		Outcome: s.Outcome,
	})
}

func (h *harness) sinkCompletion(ctx context.Context, ev lesson.CompletionEvent) error {
	h.record(TraceEvent{
		Type:       EventCompletion,
		FinalStage: string(ev.FinalStage),
		Branch:     ev.ChosenBranch,
		Outcome:    ev.Outcome,
		ElapsedMs:  ev.ElapsedMs,
	})
	return h.sink.Record(ctx, ev)
}

// record stamps ev with the next seq and the current virtual time and
// returns its position in the trace.
func (h *harness) record(ev TraceEvent) int {
	ev.Seq = h.clock.Next()
	ev.AtMs = h.virtual.Now().Sub(epoch).Milliseconds()
	h.result.AddEvent(ev)
	return len(h.result.Trace) - 1
}
