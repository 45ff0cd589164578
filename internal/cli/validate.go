package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/navicue/internal/catalog"
	"github.com/roach88/navicue/internal/compositor"
	"github.com/roach88/navicue/internal/ir"
)

// ValidationIssue is one problem found in a catalog.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Lesson  string `json:"lesson,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Catalog  string            `json:"catalog"`
	Lessons  []string          `json:"lessons"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate a lesson catalog",
		Long: `Validate a CUE lesson catalog.

Every lesson is compiled, checked (complete selector tuple, well-formed
stage plan, unique branches and outcomes) and composed against the
default compositor tables. Lessons that share a selector tuple, and so
render identically, are reported as warnings.

Without a directory the built-in catalog is validated.

Exit codes:
  0 - Catalog is valid
  1 - One or more lessons are invalid
  2 - Command error (directory not found, no CUE files, CUE syntax error)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cat, loadErrors := loadCatalog(dir, catalog.LoadModeCollectAll)
	if cat == nil || len(cat.Lessons) == 0 {
		// Nothing compiled: the catalog itself could not be read.
		err := errors.Join(loadErrors...)
		code := catalog.ErrCodeNoLessons
		if len(loadErrors) > 0 {
			code = loadErrorCode(loadErrors[0])
		}
		_ = formatter.Error(code, fmt.Sprintf("failed to load catalog %s: %v", catalogName(dir), err), nil)
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", cat.FileCount, catalogName(dir))

	result := ValidationResult{
		Catalog: catalogName(dir),
		Lessons: cat.IDs(),
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, issueFromError(err))
	}
	result.Errors = append(result.Errors, composeIssues(cat, formatter)...)
	result.Warnings = sharedTupleWarnings(cat)
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// composeIssues composes every compiled lesson against the default tables.
func composeIssues(cat *catalog.Catalog, formatter *OutputFormatter) []ValidationIssue {
	tables := compositor.DefaultTables()
	var issues []ValidationIssue
	for _, l := range cat.Lessons {
		formatter.VerboseLog("Composing lesson: %s", l.ID)
		if _, err := compositor.Compose(tables, l.Tuple); err != nil {
			issues = append(issues, ValidationIssue{
				Code:    catalog.MapConfigCode(ir.ConfigErrorCodeOf(err)),
				Message: err.Error(),
				Lesson:  l.ID,
			})
		}
	}
	return issues
}

// sharedTupleWarnings reports lessons whose tuples are identical.
func sharedTupleWarnings(cat *catalog.Catalog) []ValidationIssue {
	first := make(map[string]string)
	var warnings []ValidationIssue
	for _, l := range cat.Lessons {
		key := l.Tuple.Key()
		if other, ok := first[key]; ok {
			warnings = append(warnings, ValidationIssue{
				Code:    catalog.ErrCodeLessonRecord,
				Message: fmt.Sprintf("lesson shares its selector tuple with %q and will render identically", other),
				Lesson:  l.ID,
			})
			continue
		}
		first[key] = l.ID
	}
	return warnings
}

func issueFromError(err error) ValidationIssue {
	issue := ValidationIssue{Code: loadErrorCode(err), Message: err.Error()}
	var le *catalog.LoadError
	if errors.As(err, &le) {
		issue.Message = le.Message
		if le.Pos.IsValid() {
			issue.File = le.Pos.Filename()
			issue.Line = le.Pos.Line()
		}
	}
	return issue
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	printWarnings(formatter, result.Warnings)
	formatter.Printf("✓ %d lesson(s) valid in %s\n", len(result.Lessons), result.Catalog)
	return nil
}

// outputValidationErrors outputs validation failures.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(result.Errors))
	if formatter.JSON() {
		// Validation failures = exit code 1
		return formatter.Failure(ExitFailure, result.Errors[0].Code, message, result)
	}

	formatter.Printf("✗ Validation failed\n\n")
	for _, issue := range result.Errors {
		printIssue(formatter, issue)
	}
	printWarnings(formatter, result.Warnings)

	return NewExitError(ExitFailure, message)
}

func printWarnings(formatter *OutputFormatter, warnings []ValidationIssue) {
	for _, w := range warnings {
		formatter.Printf("warning: ")
		printIssue(formatter, w)
	}
}

func printIssue(formatter *OutputFormatter, issue ValidationIssue) {
	switch {
	case issue.File != "":
		formatter.Printf("%s:%d\n", issue.File, issue.Line)
	case issue.Lesson != "":
		formatter.Printf("lesson %s\n", issue.Lesson)
	}
	formatter.Printf("  %s: %s\n\n", issue.Code, issue.Message)
}
