package compositor

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roach88/navicue/internal/ir"
)

// Envelope bounds for derived colors, in degrees and percent.
const (
	hueJitter      = 12
	secondaryShift = 24
	glowLightLo    = 80
	glowLightHi    = 92

	durationJitterLo = 950
	durationJitterHi = 1050
)

// Compose derives the RenderRecipe for tuple from tables.
//
// Returns a *ir.ConfigurationError if the tuple is incomplete, carries an
// unrecognized value, or names a value the tables have no entry for.
// Unknown values are never defaulted.
func Compose(tables Tables, tuple ir.SelectorTuple) (ir.RenderRecipe, error) {
	if err := tuple.Validate(); err != nil {
		return ir.RenderRecipe{}, err
	}

	ramp, ok := tables.HueRamps[tuple.Signature]
	if !ok {
		return ir.RenderRecipe{}, missingEntry("signature", string(tuple.Signature))
	}
	if len(ramp.Hues) == 0 || len(ramp.Saturation) == 0 || len(ramp.Lightness) == 0 {
		return ir.RenderRecipe{}, emptyTable(fmt.Sprintf("hue_ramps[%s]", tuple.Signature))
	}
	motifs, ok := tables.Motifs[tuple.Form]
	if !ok {
		return ir.RenderRecipe{}, missingEntry("form", string(tuple.Form))
	}
	if len(motifs) == 0 {
		return ir.RenderRecipe{}, emptyTable(fmt.Sprintf("motifs[%s]", tuple.Form))
	}
	durations, ok := tables.Durations[tuple.Chrono]
	if !ok {
		return ir.RenderRecipe{}, missingEntry("chrono", string(tuple.Chrono))
	}
	if len(durations) == 0 {
		return ir.RenderRecipe{}, emptyTable(fmt.Sprintf("durations[%s]", tuple.Chrono))
	}
	if len(tables.AccentOffsets) == 0 {
		return ir.RenderRecipe{}, emptyTable("accent_offsets")
	}

	// Draw order is fixed; see package documentation.
	s := newStream(ir.TupleSeed(tuple))
	hue := pick(s, ramp.Hues) + s.between(-hueJitter, hueJitter)
	sat := pick(s, ramp.Saturation)
	light := pick(s, ramp.Lightness)
	accentOffset := pick(s, tables.AccentOffsets)
	glowLight := s.between(glowLightLo, glowLightHi)
	motif := pick(s, motifs)
	base := pick(s, durations)
	scalars := ir.DurationScalars{
		Arrival:    jitter(s, base.Arrival),
		Engagement: jitter(s, base.Engagement),
		Resolution: jitter(s, base.Resolution),
		Reflection: jitter(s, base.Reflection),
		Afterglow:  jitter(s, base.Afterglow),
	}
	outcomeSeed := s.next()

	return ir.RenderRecipe{
		ID: ir.TupleID(tuple),
		Palette: ir.Palette{
			Primary:   hexHSL(hue, sat, light),
			Secondary: hexHSL(hue+secondaryShift, clampPercent(sat-15), clampPercent(light+12)),
			Accent:    hexHSL(hue+accentOffset, clampPercent(sat+10), light),
			Glow:      hexHSL(hue, sat/2, glowLight),
		},
		Scalars:     scalars,
		MotifFamily: motif,
		OutcomeSeed: outcomeSeed,
	}, nil
}

// MustCompose is like Compose but panics on error.
// Use only in tests or when the tuple is known to be valid.
func MustCompose(tables Tables, tuple ir.SelectorTuple) ir.RenderRecipe {
	r, err := Compose(tables, tuple)
	if err != nil {
		panic(err)
	}
	return r
}

func jitter(s *stream, permille int64) int64 {
	return permille * s.between(durationJitterLo, durationJitterHi) / ir.PermilleUnit
}

// hexHSL converts integer HSL (degrees, percent, percent) to "#rrggbb".
func hexHSL(hue, sat, light int64) string {
	h := ((hue % 360) + 360) % 360
	return colorful.Hsl(float64(h), float64(sat)/100, float64(light)/100).Hex()
}

func clampPercent(v int64) int64 {
	return max(0, min(100, v))
}
