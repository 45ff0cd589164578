package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/navicue/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run lifecycle scenarios",
		Long: `Run lifecycle scenarios on a virtual clock.

Each YAML scenario mounts a lesson, replays its steps (waits, signals,
unmount) and checks its assertions. When a scenario has a golden trace
in <scenarios-dir>/golden/<name>.golden the trace must also match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  navicue test ./testdata/scenarios
  navicue test ./testdata/scenarios --filter "scenario_*"
  navicue test ./testdata/scenarios --update
  navicue test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Success(harness.SuiteResult{Scenarios: []harness.ScenarioOutcome{}})
		}
		formatter.Printf("No scenarios found.\n")
		return nil
	}

	mode := harness.GoldenCompare
	if opts.Update {
		mode = harness.GoldenUpdate
	}
	formatter.VerboseLog("Running %d scenario(s) from %s", len(files), scenariosDir)

	result := harness.RunSuite(files, mode, harness.WithLogger(newLogger(opts.RootOptions, cmd)))

	if formatter.JSON() {
		if result.Failed > 0 {
			// Test failures = exit code 1
			return formatter.Failure(ExitFailure, ErrCodeTestFailed,
				fmt.Sprintf("%d scenario(s) failed", result.Failed), result)
		}
		return formatter.Success(result)
	}

	return outputTestText(formatter, result)
}

// outputTestText outputs the suite result as text.
func outputTestText(formatter *OutputFormatter, result *harness.SuiteResult) error {
	for _, s := range result.Scenarios {
		if !s.Pass {
			formatter.Printf("✗ %s\n", s.Name)
			for _, e := range s.Errors {
				formatter.Printf("  %s\n", e)
			}
			continue
		}
		if s.Golden == "updated" {
			formatter.Printf("✓ %s (golden updated)\n", s.Name)
			continue
		}
		formatter.Printf("✓ %s\n", s.Name)
	}

	formatter.Printf("\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	formatter.Printf("✓ All scenarios passed\n")
	return nil
}
