package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/navicue/internal/engine"
)

// Scenario defines a lifecycle scenario: a lesson, a script of waits and
// signals run against it on a virtual clock, and assertions over the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Lesson is the id of the lesson to mount.
	Lesson string `yaml:"lesson"`

	// Catalog is a CUE catalog directory, relative to the scenario file.
	// If empty, the built-in catalog is used.
	Catalog string `yaml:"catalog,omitempty"`

	// Plan replaces the lesson's stage plan when set.
	Plan engine.Plan `yaml:"plan,omitempty"`

	// RunID is the fixed run id for deterministic traces.
	// If empty, defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Steps is the script, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted action. Exactly one of Wait, Signal or Unmount is set.
type Step struct {
	// Wait moves virtual time forward, firing due timers.
	Wait time.Duration `yaml:"wait,omitempty"`

	// Signal dispatches a signal of this kind ("advance", "choose").
	Signal string `yaml:"signal,omitempty"`

	// Branch is the branch for a choose signal.
	Branch string `yaml:"branch,omitempty"`

	// From scopes an advance or choose to the stage it was issued in.
	From string `yaml:"from,omitempty"`

	// ExpectError is the configuration error code Dispatch must return.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Unmount tears the instance down.
	Unmount bool `yaml:"unmount,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stage_sequence": the visited stages equal Stages
	// - "final_state": the final snapshot matches Expect
	// - "completion": exactly one completion, matching Expect
	// - "completion_count": exactly Count completions
	// - "trace_contains": an Event-typed trace event matches Expect
	// - "trace_count": exactly Count Event-typed trace events match Expect
	Type string `yaml:"type"`

	// Stages is the expected stage sequence (used by stage_sequence).
	Stages []string `yaml:"stages,omitempty"`

	// Event is the trace event type (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Expect contains expected field values. Subset match: only the
	// listed fields are checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStageSequence   = "stage_sequence"
	AssertFinalState      = "final_state"
	AssertCompletion      = "completion"
	AssertCompletionCount = "completion_count"
	AssertTraceContains   = "trace_contains"
	AssertTraceCount      = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. A relative catalog
// path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	if scenario.Catalog != "" {
		if _, err := os.Stat(scenario.Catalog); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: catalog not found: %s", scenario.Catalog)
		}
	}

	return scenario, nil
}

// ParseScenario parses and validates scenario YAML. Catalog paths are left
// as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Lesson == "" {
		return fmt.Errorf("lesson is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Plan != nil {
		if err := s.Plan.Validate(); err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step does exactly one thing.
func validateStep(index int, s Step) error {
	actions := 0
	if s.Wait != 0 {
		actions++
	}
	if s.Signal != "" {
		actions++
	}
	if s.Unmount {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one of wait, signal or unmount is required", index)
	}

	if s.Wait < 0 {
		return fmt.Errorf("steps[%d]: wait must be positive", index)
	}
	if s.Signal == "" && (s.Branch != "" || s.From != "" || s.ExpectError != "") {
		return fmt.Errorf("steps[%d]: branch, from and expect_error only apply to signals", index)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStageSequence:
		if len(a.Stages) == 0 {
			return fmt.Errorf("assertions[%d]: stages list is required for stage_sequence", index)
		}
	case AssertFinalState, AssertCompletion:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertCompletionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for completion_count", index)
		}
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
