package lesson

import (
	"context"
	"time"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
)

// CompletionEvent is emitted exactly once when an instance reaches its
// terminal stage.
type CompletionEvent struct {
	LessonID     string           `json:"lesson_id"`
	RunID        string           `json:"run_id"`
	Tuple        ir.SelectorTuple `json:"tuple"`
	RecipeID     string           `json:"recipe_id"`
	FinalStage   engine.Stage     `json:"final_stage"`
	ChosenBranch string           `json:"chosen_branch,omitempty"`
	Outcome      string           `json:"outcome,omitempty"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	CompletedAt  time.Time        `json:"completed_at"`
}

// Sink receives completion events. Implementations must not block for
// long: Record runs on the goroutine that crossed into the terminal stage.
type Sink interface {
	Record(ctx context.Context, ev CompletionEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev CompletionEvent) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, ev CompletionEvent) error {
	return f(ctx, ev)
}

type discardSink struct{}

func (discardSink) Record(context.Context, CompletionEvent) error { return nil }
