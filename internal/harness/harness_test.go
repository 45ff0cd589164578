package harness

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/testutil"
)

func koanScenario(steps []Step, assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "koan",
		Description: "koan lesson",
		Lesson:      "koan-ember-42",
		RunID:       "run-test",
		Steps:       steps,
		Assertions:  assertions,
	}
}

func TestRun_ScenarioA(t *testing.T) {
	scenario := koanScenario([]Step{
		{Wait: 2 * time.Second},
		{Signal: "advance"},
		{Wait: 1500 * time.Millisecond},
		{Signal: "advance"},
	})

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []engine.Stage{
		engine.StageDormant, engine.StageEngaged, engine.StageResolution, engine.StageAfterglow,
	}, result.Visited)
	assert.Equal(t, "completed", result.Final.State)
	assert.Equal(t, "run-test", result.Final.RunID)
	assert.Zero(t, result.Pending)

	require.Len(t, result.Completions, 1)
	assert.Equal(t, int64(3500), result.Completions[0].ElapsedMs)
	assert.Equal(t, 1, result.Count(EventCompletion))
	assert.Equal(t, 1, result.Count(EventMount))
}

func TestRun_TraceOrderAndTiming(t *testing.T) {
	result, err := Run(koanScenario([]Step{
		{Wait: 2 * time.Second},
		{Signal: "advance"},
	}))
	require.NoError(t, err)

	var types []string
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq, "seq is dense and ordered")
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{EventMount, EventSnapshot, EventWait, EventSignal, EventSnapshot}, types)

	assert.Equal(t, int64(0), result.Trace[0].AtMs)
	assert.Equal(t, int64(2000), result.Trace[1].AtMs)
	assert.Equal(t, 1, result.Trace[2].Fired)
	assert.Equal(t, "resolution", result.Trace[4].Stage)
}

func TestRun_ScenarioBWithPlanOverride(t *testing.T) {
	scenario := koanScenario([]Step{
		{Wait: 2 * time.Second},
		{Unmount: true},
		{Wait: 10 * time.Second},
	})
	scenario.Plan = engine.Plan{
		engine.Auto(engine.StageDormant, 2*time.Second),
		engine.Auto(engine.StageEngaged, 3*time.Second),
		engine.Terminal(engine.StageAfterglow),
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, engine.StageEngaged, result.Final.Stage)
	assert.Equal(t, "cancelled", result.Final.State)
	assert.Empty(t, result.Completions)
	assert.Zero(t, result.Pending)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, EventWait, last.Type)
	assert.Zero(t, last.Fired)
	assert.Equal(t, int64(12000), last.AtMs)
}

func TestRun_ExpectErrorMismatchFails(t *testing.T) {
	result, err := Run(koanScenario([]Step{
		{Signal: "choose", Branch: "stranger"},
		{Signal: "choose", Branch: "stranger", ExpectError: "UNKNOWN_BRANCH"},
		{Signal: "advance", ExpectError: "UNKNOWN_SIGNAL"},
	}))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `steps[0]: signal choose returned error "UNKNOWN_BRANCH", expected ""`)
	assert.Contains(t, result.Errors[1], `steps[2]: signal advance returned error "", expected "UNKNOWN_SIGNAL"`)

	assert.Equal(t, "UNKNOWN_BRANCH", result.Trace[1].Error)
	assert.Empty(t, result.Trace[3].Error)
}

func TestRun_SignalsAfterUnmountAreAbsorbed(t *testing.T) {
	result, err := Run(koanScenario([]Step{
		{Unmount: true},
		{Signal: "advance"},
		{Signal: "choose", Branch: "flame"},
		{Wait: time.Minute},
	}))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []engine.Stage{engine.StageDormant}, result.Visited)
	assert.Equal(t, 0, result.Count(EventSnapshot))
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	result, err := Run(koanScenario(
		[]Step{{Wait: 2 * time.Second}},
		Assertion{Type: AssertFinalState, Expect: map[string]any{"stage": "afterglow"}},
		Assertion{Type: AssertCompletionCount, Count: 1},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertion 0 (final_state)")
	assert.Contains(t, result.Errors[1], "assertion 1 (completion_count)")
}

func TestRun_UnknownLesson(t *testing.T) {
	scenario := koanScenario([]Step{{Wait: time.Second}})
	scenario.Lesson = "missing"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `lesson "missing" not found`)
}

func TestRun_InvalidCatalog(t *testing.T) {
	scenario := koanScenario([]Step{{Wait: time.Second}})
	scenario.Catalog = t.TempDir()

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}

func TestRun_CatalogDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lessons.cue"), []byte(`
lesson: "solo": {
	tuple: {
		signature:      "threshold_bell"
		form:           "tide"
		chrono:         "night"
		knowledge_mode: "embodying"
		hook:           "observe"
		specimen_seed:  5
		is_seal:        false
	}
	plan: [
		{stage: "dormant", auto_advance: "1s"},
		{stage: "afterglow", terminal: true},
	]
}
`), 0o644))

	result, err := Run(&Scenario{
		Name:        "solo",
		Description: "catalog from disk",
		Lesson:      "solo",
		Catalog:     dir,
		Steps:       []Step{{Wait: time.Second}},
		Assertions:  []Assertion{{Type: AssertCompletion, Expect: map[string]any{"elapsed_ms": 1000}}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, testutil.DefaultRunID, result.Final.RunID)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/mirror_choose_branch.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Completions, second.Completions)
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Run(koanScenario([]Step{{Wait: 2 * time.Second}}), WithLogger(logger))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "wait step completed")
	assert.Contains(t, buf.String(), "scenario finished")
	assert.Contains(t, buf.String(), "scenario=koan")
}
