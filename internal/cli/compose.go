package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/navicue/internal/compositor"
	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/lesson"
)

// ComposeOptions holds flags for the compose command.
type ComposeOptions struct {
	*RootOptions
	Catalog       string
	Signature     string
	Form          string
	Chrono        string
	KnowledgeMode string
	Hook          string
	Seed          int64
	Seal          bool
}

// ComposeResult is the output of the compose command.
type ComposeResult struct {
	LessonID string           `json:"lesson_id,omitempty"`
	Tuple    ir.SelectorTuple `json:"tuple"`
	Recipe   ir.RenderRecipe  `json:"recipe"`
	Digest   string           `json:"digest"`
	Outcome  string           `json:"outcome,omitempty"`
	Timings  []StageTiming    `json:"timings,omitempty"`
}

// StageTiming is one auto-advancing step's delay before and after the
// recipe's duration scalar for the stage's role.
type StageTiming struct {
	Stage    engine.Stage    `json:"stage"`
	Role     ir.DurationRole `json:"role,omitempty"`
	BaseMs   int64           `json:"base_ms"`
	ScaledMs int64           `json:"scaled_ms"`
}

// stageTimings lists the scaled delay of every auto-advancing step.
func stageTimings(p engine.Plan, r ir.RenderRecipe) []StageTiming {
	var out []StageTiming
	for _, step := range p {
		if step.AutoAdvance <= 0 {
			continue
		}
		role := step.Stage.Role()
		out = append(out, StageTiming{
			Stage:    step.Stage,
			Role:     role,
			BaseMs:   step.AutoAdvance.Milliseconds(),
			ScaledMs: r.Scale(role, step.AutoAdvance).Milliseconds(),
		})
	}
	return out
}

// NewComposeCommand creates the compose command.
func NewComposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ComposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compose [lesson-id]",
		Short: "Show the render recipe for a lesson or tuple",
		Long: `Compose the render recipe for a selector tuple.

With a lesson id the tuple comes from the catalog; otherwise every tuple
flag must be given. Composition is deterministic: the same tuple always
yields the same recipe and digest.

Exit codes:
  0 - Recipe composed
  2 - Command error (unknown lesson, incomplete or invalid tuple)

Examples:
  navicue compose koan-ember-42
  navicue compose --signature koan_paradox --form ember --chrono dusk \
    --knowledge-mode knowing --hook tap --seed 42 --seal`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runComposeLesson(opts, args[0], cmd)
			}
			return runComposeTuple(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog directory (default: built-in catalog)")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "signature of the tuple")
	cmd.Flags().StringVar(&opts.Form, "form", "", "form of the tuple")
	cmd.Flags().StringVar(&opts.Chrono, "chrono", "", "chrono of the tuple")
	cmd.Flags().StringVar(&opts.KnowledgeMode, "knowledge-mode", "", "knowledge mode of the tuple")
	cmd.Flags().StringVar(&opts.Hook, "hook", "", "hook of the tuple")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "specimen seed of the tuple")
	cmd.Flags().BoolVar(&opts.Seal, "seal", false, "whether the tuple is a seal")

	return cmd
}

func runComposeLesson(opts *ComposeOptions, id string, cmd *cobra.Command) error {
	l, err := lookupLesson(opts.Catalog, id)
	if err != nil {
		return err
	}
	return outputCompose(newFormatter(opts.RootOptions, cmd), &l, l.Tuple)
}

func runComposeTuple(opts *ComposeOptions, cmd *cobra.Command) error {
	tuple := ir.SelectorTuple{
		Signature:     ir.Signature(opts.Signature),
		Form:          ir.Form(opts.Form),
		Chrono:        ir.Chrono(opts.Chrono),
		KnowledgeMode: ir.KnowledgeMode(opts.KnowledgeMode),
		Hook:          ir.Hook(opts.Hook),
		SpecimenSeed:  opts.Seed,
		IsSeal:        opts.Seal,
	}
	return outputCompose(newFormatter(opts.RootOptions, cmd), nil, tuple)
}

// outputCompose composes tuple and prints the recipe. l is nil when the
// tuple came from flags.
func outputCompose(formatter *OutputFormatter, l *lesson.Lesson, tuple ir.SelectorTuple) error {
	recipe, err := compositor.Compose(compositor.DefaultTables(), tuple)
	if err != nil {
		_ = formatter.Error(ErrCodeCompose, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeCompose+": failed to compose recipe", err)
	}
	digest, err := ir.RecipeDigest(recipe)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeCompose+": failed to digest recipe", err)
	}

	result := ComposeResult{Tuple: tuple, Recipe: recipe, Digest: digest}
	if l != nil {
		result.LessonID = l.ID
		result.Timings = stageTimings(l.Plan, recipe)
		if len(l.Outcomes) > 0 {
			result.Outcome = l.Outcomes[recipe.ChooseOutcome(len(l.Outcomes))]
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	if l != nil {
		formatter.Printf("%s %s\n", headingStyle.Render(l.ID), dimStyle.Render(l.Title))
	}
	formatter.Printf("Tuple  %s\n\n", tuple)
	formatter.Printf("%s", renderRecipe(recipe))
	formatter.Printf("  digest     %s\n", digest)
	if l != nil {
		formatter.Printf("\n%s\n%s", headingStyle.Render("Plan"), renderPlan(l.Plan, recipe))
		if result.Outcome != "" {
			formatter.Printf("\nOutcome  %s\n", result.Outcome)
		}
	}
	return nil
}
