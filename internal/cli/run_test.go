package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navicue/internal/journal"
	"github.com/roach88/navicue/internal/lesson"
)

func runOpts(format, runID string) *RunOptions {
	return &RunOptions{
		RootOptions: &RootOptions{Format: format},
		TapAfter:    time.Second,
		Virtual:     true,
		RunIDs:      lesson.NewFixedGenerator(runID),
	}
}

func TestRunKoanVirtualJSON(t *testing.T) {
	opts := runOpts("json", "run-cli")
	out, err := executeRun(t, opts, "koan-ember-42")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "koan-ember-42", result.LessonID)
	assert.Equal(t, "run-cli", result.RunID)
	assert.NotEmpty(t, result.RecipeID)

	assert.Equal(t, []RunStep{
		{AtMs: 0, Stage: "dormant", Index: 0, State: "running"},
		{AtMs: 2000, Stage: "engaged", Index: 1, State: "running"},
		{AtMs: 3000, Stage: "resolution", Index: 2, State: "running", Branch: "flame"},
		{AtMs: 4500, Stage: "afterglow", Index: 3, State: "completed", Branch: "flame", Outcome: "flicker"},
	}, result.Steps)

	require.NotNil(t, result.Completion)
	assert.Equal(t, "run-cli", result.Completion.RunID)
	assert.Equal(t, int64(4500), result.Completion.ElapsedMs)
	assert.Equal(t, "flame", result.Completion.ChosenBranch)
	assert.Equal(t, "flicker", result.Completion.Outcome)
	assert.Equal(t, result.RecipeID, result.Completion.RecipeID)
}

func TestRunHonoursBranchAndTapDelay(t *testing.T) {
	opts := runOpts("json", "run-mirror")
	opts.Branch = "friend"
	opts.TapAfter = 250 * time.Millisecond

	out, err := executeRun(t, opts, "mirror-morning-ghost")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	require.NotNil(t, result.Completion)
	assert.Equal(t, "friend", result.Completion.ChosenBranch)
	// dormant 1500ms, tap after 250ms, resolution 2s
	assert.Equal(t, int64(3750), result.Completion.ElapsedMs)
}

func TestRunLessonWithoutBranchesAdvances(t *testing.T) {
	opts := runOpts("json", "run-stone")
	out, err := executeRun(t, opts, "stone-night-witness")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	require.NotNil(t, result.Completion)
	assert.Empty(t, result.Completion.ChosenBranch)
	// dormant 2500ms, tap after 1s, reflection 5s
	assert.Equal(t, int64(8500), result.Completion.ElapsedMs)
}

func TestRunText(t *testing.T) {
	out, err := executeRun(t, runOpts("text", "run-text"), "koan-ember-42")
	require.NoError(t, err)

	assert.Contains(t, out, "The sound of one ember")
	assert.Contains(t, out, "engaged")
	assert.Contains(t, out, "outcome=flicker")
	assert.Contains(t, out, "✓ Completed in 4500ms with outcome flicker (run run-text)")
}

func TestRunRecordsToJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "navicue.db")
	opts := runOpts("text", "run-journaled")
	opts.Journal = db

	out, err := executeRun(t, opts, "koan-ember-42")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded in "+db)

	j, err := journal.Open(db)
	require.NoError(t, err)
	defer j.Close()

	entry, ok, err := j.Get(context.Background(), "run-journaled")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "koan-ember-42", entry.Event.LessonID)
	assert.Equal(t, int64(4500), entry.Event.ElapsedMs)
}

func TestRunUnknownLesson(t *testing.T) {
	_, err := executeRun(t, runOpts("text", "x"), "no-such-lesson")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeUnknownLesson)
}

func TestRunRejectsUnofferedBranch(t *testing.T) {
	opts := runOpts("text", "x")
	opts.Branch = "stranger"

	_, err := executeRun(t, opts, "mirror-morning-ghost")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidInput)
}

func TestRunFromCatalogDirectory(t *testing.T) {
	opts := runOpts("json", "run-dir")
	opts.Catalog = validCatalog

	out, err := executeRun(t, opts, "river-b")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	require.NotNil(t, result.Completion)
	assert.Equal(t, "river-b", result.Completion.LessonID)
	assert.Equal(t, "left", result.Completion.ChosenBranch)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})

	for _, name := range []string{"catalog", "journal", "virtual", "tap-after", "branch"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "1s", cmd.Flags().Lookup("tap-after").DefValue)
}

// executeRun runs runLesson directly so tests can inject a run id
// generator.
func executeRun(t *testing.T, opts *RunOptions, lessonID string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{
		Use:           "run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLesson(opts, args[0], cmd)
		},
	}
	return execute(t, cmd, lessonID)
}
