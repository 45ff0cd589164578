package harness

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/navicue/internal/lesson"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %6dms %s %s\n", event.Seq, event.AtMs, event.Type, describeEvent(event))
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStageSequence:
		return assertStageSequence(result, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertCompletion:
		return assertCompletion(result, a)
	case AssertCompletionCount:
		return assertCompletionCount(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertStageSequence checks the visited stages exactly.
func assertStageSequence(result *Result, a Assertion) error {
	visited := make([]string, len(result.Visited))
	for i, s := range result.Visited {
		visited[i] = string(s)
	}
	if !slices.Equal(visited, a.Stages) {
		return &AssertionError{
			Type:     AssertStageSequence,
			Expected: fmt.Sprintf("stages %v", a.Stages),
			Actual:   fmt.Sprintf("stages %v", visited),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState checks the final snapshot using subset semantics.
func assertFinalState(result *Result, a Assertion) error {
	actual := map[string]any{
		"lesson_id": result.Final.LessonID,
		"run_id":    result.Final.RunID,
		"stage":     string(result.Final.Stage),
		"index":     result.Final.Index,
		"state":     result.Final.State,
		"branch":    result.Final.ChosenBranch,
		"outcome":   result.Final.Outcome,
		"pending":   result.Pending,
	}
	if key, ok := matchFields(actual, a.Expect); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("field %q = %v", key, a.Expect[key]),
			Actual:   fmt.Sprintf("field %q = %v", key, describeValue(actual, key)),
		}
	}
	return nil
}

// assertCompletion checks that exactly one completion was emitted and
// that it matches using subset semantics.
func assertCompletion(result *Result, a Assertion) error {
	if len(result.Completions) != 1 {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: "exactly one completion",
			Actual:   fmt.Sprintf("%d completions", len(result.Completions)),
			Trace:    result.Trace,
		}
	}
	actual := completionFields(result.Completions[0])
	if key, ok := matchFields(actual, a.Expect); !ok {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: fmt.Sprintf("field %q = %v", key, a.Expect[key]),
			Actual:   fmt.Sprintf("field %q = %v", key, describeValue(actual, key)),
		}
	}
	return nil
}

// assertCompletionCount checks the number of completions exactly.
func assertCompletionCount(result *Result, a Assertion) error {
	if len(result.Completions) != a.Count {
		return &AssertionError{
			Type:     AssertCompletionCount,
			Expected: fmt.Sprintf("%d completions", a.Count),
			Actual:   fmt.Sprintf("%d completions", len(result.Completions)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceContains checks that some event of the given type matches
// the expected fields (subset match).
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type != a.Event {
			continue
		}
		if _, ok := matchFields(event.Fields(), a.Expect); ok {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s event with %s", a.Event, formatExpect(a.Expect)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count events of the given type
// match the expected fields.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != a.Event {
			continue
		}
		if _, ok := matchFields(event.Fields(), a.Expect); ok {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events with %s", a.Count, a.Event, formatExpect(a.Expect)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func completionFields(ev lesson.CompletionEvent) map[string]any {
	return map[string]any{
		"lesson_id":   ev.LessonID,
		"run_id":      ev.RunID,
		"recipe_id":   ev.RecipeID,
		"final_stage": string(ev.FinalStage),
		"branch":      ev.ChosenBranch,
		"outcome":     ev.Outcome,
		"elapsed_ms":  ev.ElapsedMs,
	}
}

// matchFields reports whether every expected field is present in actual
// with an equal value. On mismatch it returns the first failing key in
// sorted order.
func matchFields(actual, expected map[string]any) (string, bool) {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := actual[k]
		if !ok || !valuesEqual(expected[k], v) {
			return k, false
		}
	}
	return "", true
}

// valuesEqual compares a YAML-decoded expected value with an actual one.
// YAML integers decode as int while trace fields use int64, so integers
// are compared by value.
func valuesEqual(expected, actual any) bool {
	if e, ok := toInt64(expected); ok {
		a, ok := toInt64(actual)
		return ok && e == a
	}
	return reflect.DeepEqual(expected, actual)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func describeValue(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return "<missing>"
	}
	return fmt.Sprintf("%v", v)
}

// formatExpect renders expected fields deterministically.
func formatExpect(expect map[string]any) string {
	if len(expect) == 0 {
		return "(any fields)"
	}
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, expect[k]))
	}
	return strings.Join(parts, " ")
}

func describeEvent(ev TraceEvent) string {
	fields := ev.Fields()
	delete(fields, "seq")
	delete(fields, "at_ms")
	delete(fields, "type")
	return formatExpect(fields)
}
