package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExampleScenariosGolden runs the repository's example scenarios and
// compares their traces with golden files in testdata/golden.
func TestExampleScenariosGolden(t *testing.T) {
	for _, name := range []string{
		"scenario_a_koan_completes",
		"scenario_b_cancel_freezes",
		"race_stale_tap_absorbed",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("../../testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestAssertGolden_MatchesRunWithGolden(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/scenario_b_cancel_freezes.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.Final.RunID = "run-z"
	result.AddEvent(TraceEvent{Seq: 1, Type: EventSignal, Signal: "choose", Branch: "b", Error: "UNKNOWN_BRANCH"})
	result.AddEvent(TraceEvent{Seq: 2, AtMs: 1500, Type: EventWait, Ms: 1500})

	data, err := MarshalTrace("tiny", result)
	require.NoError(t, err)

	assert.Equal(t,
		`{"run_id":"run-z","scenario_name":"tiny","trace":[`+
			`{"at_ms":0,"branch":"b","error":"UNKNOWN_BRANCH","seq":1,"signal":"choose","type":"signal"},`+
			`{"at_ms":1500,"fired":0,"ms":1500,"seq":2,"type":"wait"}]}`,
		string(data))
}

func TestMarshalTrace_EmptyTrace(t *testing.T) {
	data, err := MarshalTrace("empty", NewResult())
	require.NoError(t, err)
	assert.Equal(t, `{"run_id":"","scenario_name":"empty","trace":[]}`, string(data))
}

func TestRunWithGolden_TimingIsPartOfTrace(t *testing.T) {
	// Same steps, different wait: the traces differ in at_ms.
	a, err := Run(koanScenario([]Step{{Wait: 2 * time.Second}}))
	require.NoError(t, err)
	b, err := Run(koanScenario([]Step{{Wait: 3 * time.Second}}))
	require.NoError(t, err)

	ta, err := MarshalTrace("koan", a)
	require.NoError(t, err)
	tb, err := MarshalTrace("koan", b)
	require.NoError(t, err)
	assert.NotEqual(t, string(ta), string(tb))
}
