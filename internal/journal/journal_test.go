package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navicue/internal/compositor"
	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/lesson"
	"github.com/roach88/navicue/internal/scheduler"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestJournal creates a new file-backed journal for testing.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func testTuple(seed int64) ir.SelectorTuple {
	return ir.SelectorTuple{
		Signature:     ir.SignatureWitnessRitual,
		Form:          ir.FormStone,
		Chrono:        ir.ChronoNight,
		KnowledgeMode: ir.KnowledgeEmbodying,
		Hook:          ir.HookType,
		SpecimenSeed:  seed,
		IsSeal:        seed%2 == 0,
	}
}

func testEvent(runID, lessonID, branch string, elapsedMs int64) lesson.CompletionEvent {
	tuple := testTuple(elapsedMs)
	return lesson.CompletionEvent{
		LessonID:     lessonID,
		RunID:        runID,
		Tuple:        tuple,
		RecipeID:     ir.TupleID(tuple),
		FinalStage:   engine.StageAfterglow,
		ChosenBranch: branch,
		Outcome:      "weight",
		ElapsedMs:    elapsedMs,
		CompletedAt:  epoch.Add(time.Duration(elapsedMs) * time.Millisecond),
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)

	version, err := j.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_CreatesLessonIndex(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	var name string
	err = j.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'completions' AND name = 'idx_completions_lesson'",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_completions_lesson", name)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_IdempotentAndPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j1.Record(ctx, testEvent("run-1", "stone", "", 100)))
	require.NoError(t, j1.Close())

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		entries, err := j.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		require.NoError(t, j.Close())
	}
}

func TestOpen_InMemory(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(context.Background(), testEvent("run-1", "stone", "", 10)))
	entries, err := j.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_RoundTrip(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	ev := testEvent("run-1", "stone-night-witness", "grain", 7500)

	require.NoError(t, j.Record(ctx, ev))

	got, ok, err := j.Get(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, ev, got.Event)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
	assert.Equal(t, ir.RecipeVersion, got.RecipeVersion)
}

func TestRecord_DuplicateRunIsIgnored(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testEvent("run-1", "stone", "a", 100)))
	require.NoError(t, j.Record(ctx, testEvent("run-1", "stone", "b", 200)))

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Event.ChosenBranch)
}

func TestGet_UnknownRun(t *testing.T) {
	j := createTestJournal(t)

	_, ok, err := j.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList_FilterAndOrder(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testEvent("run-c", "stone", "", 300)))
	require.NoError(t, j.Record(ctx, testEvent("run-a", "river", "", 100)))
	require.NoError(t, j.Record(ctx, testEvent("run-b", "stone", "", 200)))

	all, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c", "run-a", "run-b"}, runIDs(all))

	stone, err := j.List(ctx, Filter{LessonID: "stone"})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c", "run-b"}, runIDs(stone))

	limited, err := j.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c", "run-a"}, runIDs(limited))

	none, err := j.List(ctx, Filter{LessonID: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSummarize(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testEvent("r1", "mirror", "parent", 1000)))
	require.NoError(t, j.Record(ctx, testEvent("r2", "mirror", "parent", 3000)))
	require.NoError(t, j.Record(ctx, testEvent("r3", "mirror", "mine", 2000)))
	require.NoError(t, j.Record(ctx, testEvent("r4", "tide", "", 500)))

	got, err := j.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Summary{
		{LessonID: "mirror", Runs: 3, MeanElapsed: 2000, BranchCounts: map[string]int{"parent": 2, "mine": 1}},
		{LessonID: "tide", Runs: 1, MeanElapsed: 500},
	}, got)
}

func TestJournal_AsLessonSink(t *testing.T) {
	j := createTestJournal(t)
	v := scheduler.NewVirtual(epoch)
	l := lesson.Lesson{
		ID:       "stone-night-witness",
		Tuple:    testTuple(1337),
		Branches: []string{"weight", "warmth"},
		Plan: engine.Plan{
			engine.Auto(engine.StageDormant, 2500*time.Millisecond),
			engine.Manual(engine.StageEngaged),
			engine.Terminal(engine.StageAfterglow),
		},
	}

	inst, err := lesson.Mount(l, compositor.NewCache(compositor.DefaultTables()), v,
		lesson.WithSink(j),
		lesson.WithRunIDs(lesson.NewFixedGenerator("run-journal")),
		lesson.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	defer inst.Unmount()

	v.Advance(2500 * time.Millisecond)
	require.NoError(t, inst.Dispatch(lesson.Choose("warmth")))

	got, ok, err := j.Get(context.Background(), "run-journal")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stone-night-witness", got.Event.LessonID)
	assert.Equal(t, "warmth", got.Event.ChosenBranch)
	assert.Equal(t, int64(2500), got.Event.ElapsedMs)
	assert.Equal(t, l.Tuple, got.Event.Tuple)
	assert.Equal(t, inst.Recipe().ID, got.Event.RecipeID)
}

func runIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Event.RunID
	}
	return ids
}
