package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/navicue/internal/compositor"
	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/journal"
	"github.com/roach88/navicue/internal/lesson"
	"github.com/roach88/navicue/internal/scheduler"
)

// runEpoch is the start of virtual time for --virtual runs.
var runEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// maxVirtualCallbacks bounds a virtual run; a valid plan needs one
// callback per step plus one tap per manual stage.
const maxVirtualCallbacks = 1024

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Catalog  string
	Journal  string
	Virtual  bool
	TapAfter time.Duration
	Branch   string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to lesson.UUIDv7Generator.
	RunIDs lesson.RunIDGenerator
}

// RunStep is one snapshot observed during a run.
type RunStep struct {
	AtMs    int64  `json:"at_ms"`
	Stage   string `json:"stage"`
	Index   int    `json:"index"`
	State   string `json:"state"`
	Branch  string `json:"branch,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// RunResult is the output of the run command.
type RunResult struct {
	LessonID   string                  `json:"lesson_id"`
	RunID      string                  `json:"run_id"`
	RecipeID   string                  `json:"recipe_id"`
	Steps      []RunStep               `json:"steps"`
	Completion *lesson.CompletionEvent `json:"completion,omitempty"`
	Journal    string                  `json:"journal,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <lesson-id>",
		Short: "Run a lesson end to end",
		Long: `Mount a lesson and drive it to completion.

Auto-advancing stages move on their own. Stages that wait for input are
tapped by an autopilot after --tap-after; the autopilot makes the --branch
choice (or the lesson's first branch) when the lesson offers one.

With --virtual the lesson runs on a virtual clock and finishes instantly.
With --journal the completion event is recorded in a SQLite journal.

Exit codes:
  0 - Lesson completed
  1 - Lesson did not complete (interrupted)
  2 - Command error (unknown lesson, invalid branch, journal error)

Examples:
  navicue run koan-ember-42
  navicue run mirror-morning-ghost --branch friend --virtual
  navicue run koan-ember-42 --journal ./navicue.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLesson(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog directory (default: built-in catalog)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal database")
	cmd.Flags().BoolVar(&opts.Virtual, "virtual", false, "run on a virtual clock")
	cmd.Flags().DurationVar(&opts.TapAfter, "tap-after", time.Second, "autopilot delay before tapping a waiting stage")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch the autopilot chooses")

	return cmd
}

// lessonRun holds the state of one run command invocation. Once the
// scheduler runs, it is only touched from the scheduler's goroutine.
type lessonRun struct {
	opts      *RunOptions
	formatter *OutputFormatter
	sched     scheduler.Scheduler
	start     time.Time
	inst      *lesson.Instance
	result    RunResult
	done      func()
}

func runLesson(opts *RunOptions, lessonID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	l, err := lookupLesson(opts.Catalog, lessonID)
	if err != nil {
		return err
	}
	if opts.Branch != "" && !l.HasBranch(opts.Branch) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("%s: lesson %s does not offer branch %q (offers %v)", ErrCodeInvalidInput, l.ID, opts.Branch, l.Branches))
	}
	if opts.TapAfter < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: --tap-after must not be negative", ErrCodeInvalidInput))
	}

	run := &lessonRun{opts: opts, formatter: formatter, result: RunResult{LessonID: l.ID}}

	var sink lesson.Sink = lesson.SinkFunc(func(context.Context, lesson.CompletionEvent) error { return nil })
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open journal", ErrCodeJournal), err)
		}
		defer j.Close()
		sink = j
		run.result.Journal = opts.Journal
	}

	var (
		virtual *scheduler.Virtual
		loop    *scheduler.Loop
	)
	if opts.Virtual {
		virtual = scheduler.NewVirtual(runEpoch)
		run.sched = virtual
		run.done = func() {}
	} else {
		loop = scheduler.NewLoop(scheduler.WithLoopLogger(logger))
		run.sched = loop
		run.done = loop.Stop
	}
	run.start = run.sched.Now()

	mountOpts := []lesson.Option{
		lesson.WithLogger(logger.With("lesson", l.ID)),
		lesson.WithSink(lesson.SinkFunc(func(ctx context.Context, ev lesson.CompletionEvent) error {
			run.result.Completion = &ev
			defer run.done()
			return sink.Record(ctx, ev)
		})),
	}
	if opts.RunIDs != nil {
		mountOpts = append(mountOpts, lesson.WithRunIDs(opts.RunIDs))
	}

	if !formatter.JSON() {
		formatter.Printf("%s\n", headingStyle.Render(l.Title))
		if l.Prompt != "" {
			formatter.Printf("%s\n", dimStyle.Render(l.Prompt))
		}
		formatter.Printf("\n")
	}

	// Timers only fire once the scheduler runs, so subscribing after Mount
	// cannot miss a transition.
	inst, err := lesson.Mount(l, compositor.NewCache(compositor.DefaultTables()), run.sched, mountOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to mount lesson", ErrCodeRun), err)
	}
	defer inst.Unmount()
	run.inst = inst
	run.result.RunID = inst.RunID()
	run.result.RecipeID = inst.Recipe().ID

	run.observe(inst.Snapshot())
	inst.Subscribe(run.observe)

	if opts.Virtual {
		virtual.Drain(maxVirtualCallbacks)
	} else {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("%s: scheduler loop failed", ErrCodeRun), err)
		}
	}

	if run.result.Completion == nil {
		inst.Unmount()
		run.observe(inst.Snapshot())
		return formatter.Failure(ExitFailure, ErrCodeRun,
			fmt.Sprintf("lesson %s did not complete (stopped at %s)", l.ID, inst.Snapshot().Stage), run.result)
	}

	if formatter.JSON() {
		return formatter.Success(run.result)
	}
	ev := run.result.Completion
	formatter.Printf("\n✓ Completed in %dms", ev.ElapsedMs)
	if ev.Outcome != "" {
		formatter.Printf(" with outcome %s", ev.Outcome)
	}
	formatter.Printf(" (run %s)\n", ev.RunID)
	if run.result.Journal != "" {
		formatter.Printf("Recorded in %s\n", run.result.Journal)
	}
	return nil
}

// observe records a snapshot and, if the stage waits for input, schedules
// the autopilot tap.
func (r *lessonRun) observe(s lesson.Snapshot) {
	step := RunStep{
		AtMs:    r.sched.Now().Sub(r.start).Milliseconds(),
		Stage:   string(s.Stage),
		Index:   s.Index,
		State:   s.State,
		Branch:  s.ChosenBranch,
		Outcome: s.Outcome,
	}
	if n := len(r.result.Steps); n > 0 && r.result.Steps[n-1] == step {
		return
	}
	r.result.Steps = append(r.result.Steps, step)

	if !r.formatter.JSON() {
		line := fmt.Sprintf("[%6dms] %s", step.AtMs, stageStyle(s.Recipe).Render(step.Stage))
		if step.Branch != "" {
			line += " branch=" + step.Branch
		}
		if step.Outcome != "" {
			line += " outcome=" + step.Outcome
		}
		r.formatter.Printf("%s %s\n", line, dimStyle.Render(step.State))
	}

	if s.State != engine.StateRunning.String() {
		return
	}
	plan := r.inst.Lesson().Plan
	i := plan.IndexOf(s.Stage)
	if i < 0 || plan[i].AutoAdvance > 0 || plan[i].Terminal {
		return
	}
	stage := s.Stage
	r.sched.AfterFunc(r.opts.TapAfter, func() { r.tap(stage) })
}

// tap acts on a waiting stage the way a learner would: choose a branch if
// one is offered and none is chosen yet, otherwise advance.
func (r *lessonRun) tap(stage engine.Stage) {
	s := r.inst.Snapshot()
	if s.Stage != stage || s.State != engine.StateRunning.String() {
		return
	}

	sig := lesson.AdvanceFrom(stage)
	if l := r.inst.Lesson(); len(l.Branches) > 0 && s.ChosenBranch == "" {
		branch := r.opts.Branch
		if branch == "" {
			branch = l.Branches[0]
		}
		sig = lesson.Choose(branch)
		sig.From = stage
	}
	if err := r.inst.Dispatch(sig); err != nil {
		r.formatter.VerboseLog("autopilot signal rejected: %v", err)
	}
}
