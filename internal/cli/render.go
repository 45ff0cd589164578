package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// swatch renders a block of the given "#rrggbb" color followed by its code.
func swatch(hex string) string {
	block := lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("    ")
	return block + " " + hex
}

// stageStyle colors stage names with the recipe's accent.
func stageStyle(r ir.RenderRecipe) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(r.Palette.Accent)).Bold(true)
}

// renderRecipe formats a recipe for text output.
func renderRecipe(r ir.RenderRecipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("Recipe"), dimStyle.Render(r.ID))
	fmt.Fprintf(&b, "  motif      %s\n", r.MotifFamily)
	fmt.Fprintf(&b, "  primary    %s\n", swatch(r.Palette.Primary))
	fmt.Fprintf(&b, "  secondary  %s\n", swatch(r.Palette.Secondary))
	fmt.Fprintf(&b, "  accent     %s\n", swatch(r.Palette.Accent))
	fmt.Fprintf(&b, "  glow       %s\n", swatch(r.Palette.Glow))
	fmt.Fprintf(&b, "  scalars    arrival=%d engagement=%d resolution=%d reflection=%d afterglow=%d (‰)\n",
		r.Scalars.Arrival, r.Scalars.Engagement, r.Scalars.Resolution, r.Scalars.Reflection, r.Scalars.Afterglow)
	return b.String()
}

// renderPlan formats a stage plan one step per line. Auto-advance delays
// are shown next to their value under the recipe's duration scalars.
func renderPlan(p engine.Plan, r ir.RenderRecipe) string {
	var b strings.Builder
	for i, step := range p {
		switch {
		case step.Terminal:
			fmt.Fprintf(&b, "  %d. %s (terminal)\n", i, step.Stage)
		case step.AutoAdvance > 0:
			fmt.Fprintf(&b, "  %d. %s → %s %s\n", i, step.Stage, step.AutoAdvance,
				dimStyle.Render(fmt.Sprintf("(scaled %s)", r.Scale(step.Stage.Role(), step.AutoAdvance))))
		default:
			fmt.Fprintf(&b, "  %d. %s (waits for input)\n", i, step.Stage)
		}
	}
	return b.String()
}
