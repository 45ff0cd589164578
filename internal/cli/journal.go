package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/navicue/internal/compositor"
	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/journal"
)

// JournalOptions holds flags shared by the journal subcommands.
type JournalOptions struct {
	*RootOptions
	Database string
	Lesson   string
	Limit    int
}

// VerifyIssue describes one journal entry whose recipe no longer matches.
type VerifyIssue struct {
	RunID    string `json:"run_id"`
	LessonID string `json:"lesson_id"`
	Message  string `json:"message"`
}

// VerifyResult is the output of journal verify.
type VerifyResult struct {
	Checked int           `json:"checked"`
	Issues  []VerifyIssue `json:"issues,omitempty"`
}

// NewJournalCommand creates the journal command and its subcommands.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the completion journal",
		Long: `Inspect completion events recorded by "navicue run --journal".

Examples:
  navicue journal list --db ./navicue.db --lesson koan-ember-42
  navicue journal show <run-id> --db ./navicue.db
  navicue journal summary --db ./navicue.db
  navicue journal verify --db ./navicue.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite journal database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List journaled completions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(opts, func(j *journal.Journal) error { return runJournalList(opts, j, cmd) })
		},
	}
	list.Flags().StringVar(&opts.Lesson, "lesson", "", "only list runs of this lesson")
	list.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")

	show := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one journaled completion",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(opts, func(j *journal.Journal) error { return runJournalShow(opts, j, args[0], cmd) })
		},
	}

	summary := &cobra.Command{
		Use:           "summary",
		Short:         "Summarize runs per lesson",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(opts, func(j *journal.Journal) error { return runJournalSummary(opts, j, cmd) })
		},
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check journaled recipes against the current compositor",
		Long: `Recompose the tuple of every journaled completion and check that the
recipe id and recipe version still match what was recorded.

Exit codes:
  0 - Every entry matches
  1 - One or more entries no longer match
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(opts, func(j *journal.Journal) error { return runJournalVerify(opts, j, cmd) })
		},
	}

	cmd.AddCommand(list, show, summary, verify)
	return cmd
}

// withJournal opens the journal for the duration of fn.
func withJournal(opts *JournalOptions, fn func(*journal.Journal) error) error {
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open journal", ErrCodeJournal), err)
	}
	defer j.Close()
	return fn(j)
}

func runJournalList(opts *JournalOptions, j *journal.Journal, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	entries, err := j.List(cmd.Context(), journal.Filter{LessonID: opts.Lesson, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeJournal+": failed to list journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		formatter.Printf("No completions recorded.\n")
		return nil
	}
	for _, e := range entries {
		ev := e.Event
		formatter.Printf("%4d  %s  %-24s %7dms", e.Seq, ev.RunID, ev.LessonID, ev.ElapsedMs)
		if ev.ChosenBranch != "" {
			formatter.Printf("  branch=%s", ev.ChosenBranch)
		}
		if ev.Outcome != "" {
			formatter.Printf("  outcome=%s", ev.Outcome)
		}
		formatter.Printf("\n")
	}
	return nil
}

func runJournalShow(opts *JournalOptions, j *journal.Journal, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	e, ok, err := j.Get(cmd.Context(), runID)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeJournal+": failed to read journal", err)
	}
	if !ok {
		_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("run %q not found", runID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run %q not found", runID))
	}

	if formatter.JSON() {
		return formatter.Success(e)
	}
	ev := e.Event
	formatter.Printf("%s %s\n", headingStyle.Render("Run"), ev.RunID)
	formatter.Printf("  lesson        %s\n", ev.LessonID)
	formatter.Printf("  tuple         %s\n", ev.Tuple)
	formatter.Printf("  recipe        %s (v%s)\n", ev.RecipeID, e.RecipeVersion)
	formatter.Printf("  final stage   %s\n", ev.FinalStage)
	if ev.ChosenBranch != "" {
		formatter.Printf("  branch        %s\n", ev.ChosenBranch)
	}
	if ev.Outcome != "" {
		formatter.Printf("  outcome       %s\n", ev.Outcome)
	}
	formatter.Printf("  elapsed       %dms\n", ev.ElapsedMs)
	formatter.Printf("  completed at  %s\n", ev.CompletedAt.Format("2006-01-02T15:04:05.000Z07:00"))
	formatter.Printf("  engine        %s\n", e.EngineVersion)
	return nil
}

func runJournalSummary(opts *JournalOptions, j *journal.Journal, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	summaries, err := j.Summarize(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeJournal+": failed to summarize journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		formatter.Printf("No completions recorded.\n")
		return nil
	}
	for _, s := range summaries {
		formatter.Printf("%-24s runs=%d mean=%dms", s.LessonID, s.Runs, s.MeanElapsed)
		if len(s.BranchCounts) > 0 {
			formatter.Printf(" branches=%v", s.BranchCounts)
		}
		formatter.Printf("\n")
	}
	return nil
}

func runJournalVerify(opts *JournalOptions, j *journal.Journal, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	entries, err := j.List(cmd.Context(), journal.Filter{})
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeJournal+": failed to list journal", err)
	}

	cache := compositor.NewCache(compositor.DefaultTables())
	result := VerifyResult{Checked: len(entries)}
	for _, e := range entries {
		ev := e.Event
		issue := func(format string, args ...any) {
			result.Issues = append(result.Issues, VerifyIssue{
				RunID:    ev.RunID,
				LessonID: ev.LessonID,
				Message:  fmt.Sprintf(format, args...),
			})
		}

		if e.RecipeVersion != ir.RecipeVersion {
			issue("recorded with recipe version %s, current is %s", e.RecipeVersion, ir.RecipeVersion)
			continue
		}
		recipe, err := cache.Recipe(ev.Tuple)
		if err != nil {
			issue("tuple no longer composes: %v", err)
			continue
		}
		if recipe.ID != ev.RecipeID {
			issue("recipe id %s does not match recorded %s", recipe.ID, ev.RecipeID)
		}
	}

	message := fmt.Sprintf("%d of %d entries do not match", len(result.Issues), result.Checked)
	if formatter.JSON() {
		if len(result.Issues) > 0 {
			return formatter.Failure(ExitFailure, ErrCodeJournal, message, result)
		}
		return formatter.Success(result)
	}

	for _, is := range result.Issues {
		formatter.Printf("✗ %s (%s): %s\n", is.RunID, is.LessonID, is.Message)
	}
	if len(result.Issues) > 0 {
		return NewExitError(ExitFailure, message)
	}
	formatter.Printf("✓ %d entries verified\n", result.Checked)
	return nil
}
