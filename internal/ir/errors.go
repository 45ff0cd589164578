package ir

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a content-authoring bug: a malformed or unknown
// selector field, an invalid stage plan, or a lesson record that does not
// hang together. It is the only error kind that crosses from the core into
// the host. It is fatal for the affected lesson instance and never retried.
type ConfigurationError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Field names the offending field, e.g. "form" or "plan[2].stage".
	Field string

	// Message is a human-readable description.
	Message string

	// LessonID identifies the affected lesson when known.
	LessonID string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeIncompleteTuple indicates a selector field is missing.
	ErrCodeIncompleteTuple ConfigErrorCode = "INCOMPLETE_TUPLE"

	// ErrCodeUnknownEnum indicates a selector field holds an unrecognized value,
	// or a value with no entry in the compositor tables.
	ErrCodeUnknownEnum ConfigErrorCode = "UNKNOWN_ENUM"

	// ErrCodeEmptyPlan indicates a stage plan with no steps.
	ErrCodeEmptyPlan ConfigErrorCode = "EMPTY_PLAN"

	// ErrCodeInvalidStage indicates a plan step has no stage name.
	ErrCodeInvalidStage ConfigErrorCode = "INVALID_STAGE"

	// ErrCodeDuplicateStage indicates a stage appears twice in a plan.
	ErrCodeDuplicateStage ConfigErrorCode = "DUPLICATE_STAGE"

	// ErrCodeTerminalStage indicates the plan does not end in exactly one
	// terminal stage.
	ErrCodeTerminalStage ConfigErrorCode = "TERMINAL_STAGE"

	// ErrCodeInvalidDelay indicates a negative or misplaced auto-advance delay.
	ErrCodeInvalidDelay ConfigErrorCode = "INVALID_DELAY"

	// ErrCodeAlreadyStarted indicates Start was called twice on one engine.
	ErrCodeAlreadyStarted ConfigErrorCode = "ALREADY_STARTED"

	// ErrCodeUnknownBranch indicates a choice signal named a branch the
	// lesson does not define.
	ErrCodeUnknownBranch ConfigErrorCode = "UNKNOWN_BRANCH"

	// ErrCodeUnknownSignal indicates a signal of a kind no lesson accepts.
	ErrCodeUnknownSignal ConfigErrorCode = "UNKNOWN_SIGNAL"

	// ErrCodeMissingTable indicates a compositor table is empty.
	ErrCodeMissingTable ConfigErrorCode = "MISSING_TABLE"

	// ErrCodeInvalidLesson indicates a lesson record is malformed.
	ErrCodeInvalidLesson ConfigErrorCode = "INVALID_LESSON"
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.LessonID != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s (lesson=%s, field=%s)", e.Code, e.Message, e.LessonID, e.Field)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped ConfigurationError, or ""
// if err is not one.
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// WithLesson returns a copy of err annotated with lessonID if err is a
// ConfigurationError without one; other errors are returned unchanged.
func WithLesson(err error, lessonID string) error {
	var ce *ConfigurationError
	if !errors.As(err, &ce) || ce.LessonID != "" {
		return err
	}
	annotated := *ce
	annotated.LessonID = lessonID
	return &annotated
}

// NewIncompleteTupleError creates a ConfigurationError for a missing field.
func NewIncompleteTupleError(field string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeIncompleteTuple,
		Field:   field,
		Message: "selector tuple field is required",
	}
}

// NewUnknownEnumError creates a ConfigurationError for an unrecognized value.
func NewUnknownEnumError(field, value string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeUnknownEnum,
		Field:   field,
		Message: fmt.Sprintf("unrecognized value %q", value),
	}
}

// NewPlanError creates a ConfigurationError for a stage plan violation.
func NewPlanError(code ConfigErrorCode, field, message string) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Field:   field,
		Message: message,
	}
}
