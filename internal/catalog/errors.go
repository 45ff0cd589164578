package catalog

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/navicue/internal/ir"
)

// CompileError is a lesson compilation error with source position.
// Code is one of the E1xx constants below.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadError is a catalog loading error carrying a stable error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants, shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Lesson validation errors
	ErrCodeTupleIncomplete = "E101" // Missing tuple field
	ErrCodeTupleEnum       = "E102" // Unrecognized tuple value
	ErrCodePlan            = "E103" // Malformed stage plan
	ErrCodeInvalidType     = "E104" // Wrong field type (e.g., float seed)
	ErrCodeLessonRecord    = "E105" // Malformed branches, outcomes or id
	ErrCodeNoLessons       = "E106" // Catalog defines no lessons
	ErrCodeMissingTable    = "E107" // A compositor table is empty
	ErrCodeUnknownField    = "E108" // Unrecognized field label (typo)
)

// MapConfigCode maps a ConfigurationError code to a catalog error code.
func MapConfigCode(code ir.ConfigErrorCode) string {
	switch code {
	case ir.ErrCodeIncompleteTuple:
		return ErrCodeTupleIncomplete
	case ir.ErrCodeUnknownEnum:
		return ErrCodeTupleEnum
	case ir.ErrCodeEmptyPlan, ir.ErrCodeInvalidStage, ir.ErrCodeDuplicateStage,
		ir.ErrCodeTerminalStage, ir.ErrCodeInvalidDelay:
		return ErrCodePlan
	case ir.ErrCodeInvalidLesson, ir.ErrCodeUnknownBranch:
		return ErrCodeLessonRecord
	case ir.ErrCodeMissingTable:
		return ErrCodeMissingTable
	default:
		return ErrCodeGeneric
	}
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    compileErr.Code,
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Code:    ErrCodeInvalidType,
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
