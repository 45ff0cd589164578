package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/lesson"
)

// Record appends a completion event. It implements lesson.Sink.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - a run id already
// in the journal is silently ignored.
func (j *Journal) Record(ctx context.Context, ev lesson.CompletionEvent) error {
	tupleJSON, err := ir.MarshalCanonical(ev.Tuple.Fields())
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO completions
		(run_id, lesson_id, tuple, recipe_id, final_stage, chosen_branch, outcome,
		 elapsed_ms, completed_at, engine_version, recipe_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		ev.RunID,
		ev.LessonID,
		string(tupleJSON),
		ev.RecipeID,
		string(ev.FinalStage),
		ev.ChosenBranch,
		ev.Outcome,
		ev.ElapsedMs,
		ev.CompletedAt.UTC().Format(time.RFC3339Nano),
		ir.EngineVersion,
		ir.RecipeVersion,
	)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

var _ lesson.Sink = (*Journal)(nil)
