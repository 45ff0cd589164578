package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/lesson"
)

// Entry is one journaled completion.
type Entry struct {
	Seq           int64                  `json:"seq"`
	Event         lesson.CompletionEvent `json:"event"`
	EngineVersion string                 `json:"engine_version"`
	RecipeVersion string                 `json:"recipe_version"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	LessonID string
	Limit    int
}

// Summary aggregates the runs of one lesson.
type Summary struct {
	LessonID     string         `json:"lesson_id"`
	Runs         int            `json:"runs"`
	MeanElapsed  int64          `json:"mean_elapsed_ms"`
	BranchCounts map[string]int `json:"branch_counts,omitempty"`
}

const selectEntry = `
	SELECT seq, run_id, lesson_id, tuple, recipe_id, final_stage, chosen_branch,
	       outcome, elapsed_ms, completed_at, engine_version, recipe_version
	FROM completions
`

// List returns journaled completions ordered by seq ASC.
// Returns an empty slice (not nil) if nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.LessonID != "" {
		where = append(where, "lesson_id = ?")
		args = append(args, f.LessonID)
	}

	query := selectEntry
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return entries, nil
}

// Get returns the completion for runID. The boolean is false if the run
// has not been journaled.
func (j *Journal) Get(ctx context.Context, runID string) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx, selectEntry+" WHERE run_id = ?", runID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Summarize aggregates runs per lesson, ordered by lesson id.
func (j *Journal) Summarize(ctx context.Context) ([]Summary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT lesson_id, chosen_branch, COUNT(*), SUM(elapsed_ms)
		FROM completions
		GROUP BY lesson_id, chosen_branch
		ORDER BY lesson_id COLLATE BINARY ASC, chosen_branch COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	totals := map[string]int64{}
	for rows.Next() {
		var (
			lessonID, branch string
			runs             int
			elapsed          int64
		)
		if err := rows.Scan(&lessonID, &branch, &runs, &elapsed); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if n := len(summaries); n == 0 || summaries[n-1].LessonID != lessonID {
			summaries = append(summaries, Summary{LessonID: lessonID})
		}
		s := &summaries[len(summaries)-1]
		s.Runs += runs
		totals[lessonID] += elapsed
		if branch != "" {
			if s.BranchCounts == nil {
				s.BranchCounts = map[string]int{}
			}
			s.BranchCounts[branch] = runs
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}

	for i := range summaries {
		summaries[i].MeanElapsed = totals[summaries[i].LessonID] / int64(summaries[i].Runs)
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e           Entry
		tupleJSON   string
		finalStage  string
		completedAt string
	)
	err := row.Scan(
		&e.Seq,
		&e.Event.RunID,
		&e.Event.LessonID,
		&tupleJSON,
		&e.Event.RecipeID,
		&finalStage,
		&e.Event.ChosenBranch,
		&e.Event.Outcome,
		&e.Event.ElapsedMs,
		&completedAt,
		&e.EngineVersion,
		&e.RecipeVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan completion: %w", err)
	}

	if err := json.Unmarshal([]byte(tupleJSON), &e.Event.Tuple); err != nil {
		return Entry{}, fmt.Errorf("decode tuple for run %s: %w", e.Event.RunID, err)
	}
	e.Event.FinalStage = engine.Stage(finalStage)

	t, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("decode completed_at for run %s: %w", e.Event.RunID, err)
	}
	e.Event.CompletedAt = t
	return e, nil
}
