package lesson

import (
	"fmt"
	"slices"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
)

// Lesson is the content record that distinguishes one NaviCue from another.
// Every lesson runs on the same Instance; only this data differs.
type Lesson struct {
	ID     string           `json:"id" yaml:"id"`
	Title  string           `json:"title,omitempty" yaml:"title,omitempty"`
	Tuple  ir.SelectorTuple `json:"tuple" yaml:"tuple"`
	Prompt string           `json:"prompt,omitempty" yaml:"prompt,omitempty"`

	// Branches are the choices a user may make. Empty means the lesson
	// offers no choice.
	Branches []string `json:"branches,omitempty" yaml:"branches,omitempty"`

	// Outcomes are template resolutions, one of which is selected by the
	// recipe's outcome seed.
	Outcomes []string `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`

	Plan engine.Plan `json:"plan" yaml:"plan"`
}

// Validate checks the record's tuple, plan, branches and outcomes. Errors
// are ConfigurationErrors annotated with the lesson id.
func (l Lesson) Validate() error {
	if l.ID == "" {
		return &ir.ConfigurationError{
			Code:    ir.ErrCodeInvalidLesson,
			Field:   "id",
			Message: "lesson id is required",
		}
	}
	if err := l.Tuple.Validate(); err != nil {
		return ir.WithLesson(err, l.ID)
	}
	if err := l.Plan.Validate(); err != nil {
		return ir.WithLesson(err, l.ID)
	}
	if err := uniqueLabels("branches", l.Branches); err != nil {
		return ir.WithLesson(err, l.ID)
	}
	if err := uniqueLabels("outcomes", l.Outcomes); err != nil {
		return ir.WithLesson(err, l.ID)
	}
	return nil
}

// HasBranch reports whether branch is one of the lesson's choices.
func (l Lesson) HasBranch(branch string) bool {
	return slices.Contains(l.Branches, branch)
}

func uniqueLabels(field string, labels []string) error {
	for i, label := range labels {
		if label == "" {
			return &ir.ConfigurationError{
				Code:    ir.ErrCodeInvalidLesson,
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "label is empty",
			}
		}
		if j := slices.Index(labels, label); j != i {
			return &ir.ConfigurationError{
				Code:    ir.ErrCodeInvalidLesson,
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("label %q repeats %s[%d]", label, field, j),
			}
		}
	}
	return nil
}
