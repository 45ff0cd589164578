package engine

import (
	"fmt"
	"time"

	"github.com/roach88/navicue/internal/ir"
)

// Stage names a phase of a lesson's lifecycle (dormant, engaged, ...).
type Stage string

// Common stage names used by the built-in lesson catalog. Plans are free to
// name their own stages.
const (
	StageDormant    Stage = "dormant"
	StageEngaged    Stage = "engaged"
	StageResolution Stage = "resolution"
	StageReflection Stage = "reflection"
	StageAfterglow  Stage = "afterglow"
)

// Role returns the recipe duration role that scales this stage. Stages
// outside the common set have no role and are left unscaled.
func (s Stage) Role() ir.DurationRole {
	switch s {
	case StageDormant:
		return ir.RoleArrival
	case StageEngaged:
		return ir.RoleEngagement
	case StageResolution:
		return ir.RoleResolution
	case StageReflection:
		return ir.RoleReflection
	case StageAfterglow:
		return ir.RoleAfterglow
	default:
		return ""
	}
}

// Step is one entry in a Plan.
//
// AutoAdvance of zero means the step waits for the caller; a positive value
// schedules an advance to the next step that long after the step is entered.
// Exactly one step in a plan is Terminal and it must be the last.
type Step struct {
	Stage       Stage         `json:"stage" yaml:"stage"`
	AutoAdvance time.Duration `json:"auto_advance,omitempty" yaml:"auto_advance,omitempty"`
	Terminal    bool          `json:"terminal,omitempty" yaml:"terminal,omitempty"`
}

// Auto returns a step that advances on its own after d.
func Auto(stage Stage, d time.Duration) Step {
	return Step{Stage: stage, AutoAdvance: d}
}

// Manual returns a step that waits for an explicit advance.
func Manual(stage Stage) Step {
	return Step{Stage: stage}
}

// Terminal returns the final step of a plan.
func Terminal(stage Stage) Step {
	return Step{Stage: stage, Terminal: true}
}

// Plan is an ordered, acyclic sequence of steps.
type Plan []Step

// Validate checks the plan's structural invariants:
//   - at least one step
//   - every stage is named and names are unique
//   - delays are non-negative
//   - exactly one terminal step, placed last, with no auto-advance
func (p Plan) Validate() error {
	if len(p) == 0 {
		return ir.NewPlanError(ir.ErrCodeEmptyPlan, "plan", "plan has no steps")
	}

	seen := make(map[Stage]int, len(p))
	terminals := 0
	for i, step := range p {
		field := fmt.Sprintf("plan[%d]", i)

		if step.Stage == "" {
			return ir.NewPlanError(ir.ErrCodeInvalidStage, field, "stage name is empty")
		}
		if prev, dup := seen[step.Stage]; dup {
			return ir.NewPlanError(ir.ErrCodeDuplicateStage, field,
				fmt.Sprintf("stage %q already declared at plan[%d]", step.Stage, prev))
		}
		seen[step.Stage] = i

		if step.AutoAdvance < 0 {
			return ir.NewPlanError(ir.ErrCodeInvalidDelay, field,
				fmt.Sprintf("negative auto-advance %s", step.AutoAdvance))
		}

		if step.Terminal {
			terminals++
			if i != len(p)-1 {
				return ir.NewPlanError(ir.ErrCodeTerminalStage, field,
					fmt.Sprintf("terminal stage %q must be last", step.Stage))
			}
			if step.AutoAdvance > 0 {
				return ir.NewPlanError(ir.ErrCodeInvalidDelay, field,
					fmt.Sprintf("terminal stage %q cannot auto-advance", step.Stage))
			}
		}
	}

	if terminals != 1 {
		return ir.NewPlanError(ir.ErrCodeTerminalStage, "plan",
			fmt.Sprintf("plan must end in exactly one terminal stage, found %d", terminals))
	}
	return nil
}

// Stages returns the stage names in plan order.
func (p Plan) Stages() []Stage {
	out := make([]Stage, len(p))
	for i, step := range p {
		out[i] = step.Stage
	}
	return out
}

// IndexOf returns the position of stage in the plan, or -1.
func (p Plan) IndexOf(stage Stage) int {
	for i, step := range p {
		if step.Stage == stage {
			return i
		}
	}
	return -1
}
