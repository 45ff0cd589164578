package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GoldenMode controls how RunSuite treats golden trace files.
type GoldenMode int

const (
	// GoldenCompare compares traces with existing golden files; scenarios
	// without one are judged by their assertions alone.
	GoldenCompare GoldenMode = iota
	// GoldenUpdate rewrites every golden file from the current trace.
	GoldenUpdate
)

// ScenarioOutcome is the result of one scenario file in a suite.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "updated" or "" when absent
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult summarises a suite run.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// FindScenarios walks dir and returns every .yaml and .yml file whose base
// name (without extension) matches filter. An empty filter matches all.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// GoldenPath returns the golden file for a scenario file: a sibling
// golden/ directory holding <name>.golden.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// RunSuite loads and runs every scenario file, checking golden traces
// according to mode. Load and execution failures are reported per
// scenario; RunSuite itself does not fail.
func RunSuite(files []string, mode GoldenMode, opts ...Option) *SuiteResult {
	suite := &SuiteResult{
		Scenarios: make([]ScenarioOutcome, 0, len(files)),
		Total:     len(files),
	}

	for _, file := range files {
		outcome := runFile(file, mode, opts)
		if outcome.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, outcome)
	}

	return suite
}

func runFile(file string, mode GoldenMode, opts []Option) ScenarioOutcome {
	outcome := ScenarioOutcome{Name: filepath.Base(file), Path: file}
	fail := func(format string, args ...any) ScenarioOutcome {
		outcome.Pass = false
		outcome.Errors = append(outcome.Errors, fmt.Sprintf(format, args...))
		return outcome
	}

	scenario, err := LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	outcome.Name = scenario.Name

	result, err := Run(scenario, opts...)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	outcome.Pass = result.Pass
	outcome.Errors = append(outcome.Errors, result.Errors...)

	trace, err := MarshalTrace(scenario.Name, result)
	if err != nil {
		return fail("failed to marshal trace: %v", err)
	}

	goldenPath := GoldenPath(file)
	switch mode {
	case GoldenUpdate:
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fail("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, trace, 0o644); err != nil {
			return fail("failed to write golden file: %v", err)
		}
		outcome.Golden = "updated"

	default:
		want, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return fail("failed to read golden file: %v", err)
		}
		if !bytes.Equal(bytes.TrimSpace(want), trace) {
			outcome.Golden = "mismatch"
			return fail("trace does not match golden file %s (run with --update to regenerate)", goldenPath)
		}
		outcome.Golden = "match"
	}

	return outcome
}
