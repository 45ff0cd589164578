package compositor

import (
	"fmt"

	"github.com/roach88/navicue/internal/ir"
)

// HueRamp is the curated color envelope of one signature.
// Hues are degrees, saturation and lightness are percent.
type HueRamp struct {
	Hues       []int64 `json:"hues"`
	Saturation []int64 `json:"saturation"`
	Lightness  []int64 `json:"lightness"`
}

// Tables holds every lookup table Compose indexes into. Tables are plain
// values: build them once, pass them in, never mutate them afterwards.
type Tables struct {
	HueRamps      map[ir.Signature]HueRamp           `json:"hue_ramps"`
	Motifs        map[ir.Form][]string               `json:"motifs"`
	Durations     map[ir.Chrono][]ir.DurationScalars `json:"durations"`
	AccentOffsets []int64                            `json:"accent_offsets"`
}

// DefaultTables returns a fresh copy of the curated tables.
func DefaultTables() Tables {
	return Tables{
		HueRamps: map[ir.Signature]HueRamp{
			ir.SignatureSensoryCinema:   {Hues: []int64{8, 22, 36, 348, 330}, Saturation: []int64{62, 70, 78}, Lightness: []int64{42, 48, 54}},
			ir.SignatureScienceXSoul:    {Hues: []int64{188, 200, 214, 226, 240}, Saturation: []int64{48, 56, 64}, Lightness: []int64{38, 44, 50}},
			ir.SignatureKoanParadox:     {Hues: []int64{270, 284, 300, 44, 58}, Saturation: []int64{30, 38, 46}, Lightness: []int64{46, 52, 58}},
			ir.SignaturePatternGlitch:   {Hues: []int64{160, 174, 312, 326, 96}, Saturation: []int64{72, 80, 88}, Lightness: []int64{46, 52, 58}},
			ir.SignatureSacredOrdinary:  {Hues: []int64{32, 40, 48, 24, 90}, Saturation: []int64{28, 34, 40}, Lightness: []int64{56, 62, 68}},
			ir.SignatureWitnessRitual:   {Hues: []int64{250, 262, 274, 20, 210}, Saturation: []int64{22, 28, 34}, Lightness: []int64{34, 40, 46}},
			ir.SignaturePoeticPrecision: {Hues: []int64{340, 352, 4, 200, 212}, Saturation: []int64{44, 52, 60}, Lightness: []int64{50, 56, 62}},
			ir.SignatureRelationalGhost: {Hues: []int64{220, 232, 196, 300, 312}, Saturation: []int64{18, 24, 30}, Lightness: []int64{60, 66, 72}},
			ir.SignatureSomaticAnchor:   {Hues: []int64{14, 26, 120, 132, 144}, Saturation: []int64{40, 48, 56}, Lightness: []int64{36, 42, 48}},
			ir.SignatureMirrorLattice:   {Hues: []int64{180, 192, 60, 72, 300}, Saturation: []int64{36, 44, 52}, Lightness: []int64{48, 54, 60}},
			ir.SignatureThresholdBell:   {Hues: []int64{44, 52, 268, 280, 170}, Saturation: []int64{54, 62, 70}, Lightness: []int64{44, 50, 56}},
			ir.SignatureQuietArchitect:  {Hues: []int64{210, 222, 234, 30, 150}, Saturation: []int64{12, 18, 24}, Lightness: []int64{40, 46, 52}},
		},
		Motifs: map[ir.Form][]string{
			ir.FormEmber:   {"spark_drift", "coal_pulse", "ash_veil"},
			ir.FormRiver:   {"current_braid", "eddy_spiral", "delta_fan"},
			ir.FormLattice: {"grid_breath", "node_bloom", "strut_shift"},
			ir.FormMirror:  {"reflect_fold", "double_echo", "silver_split"},
			ir.FormStone:   {"strata_rise", "pebble_drop", "monolith_hum"},
			ir.FormThread:  {"weave_pull", "knot_loosen", "spool_turn"},
			ir.FormBloom:   {"petal_open", "seed_scatter", "stem_reach"},
			ir.FormTide:    {"swell_return", "ebb_draw", "foam_line"},
			ir.FormEcho:    {"ring_decay", "call_answer", "chamber_fill"},
			ir.FormPrism:   {"refract_fan", "facet_turn", "spectrum_slide"},
		},
		Durations: map[ir.Chrono][]ir.DurationScalars{
			ir.ChronoDawn: {
				{Arrival: 1400, Engagement: 1100, Resolution: 1200, Reflection: 1300, Afterglow: 1500},
				{Arrival: 1300, Engagement: 1000, Resolution: 1100, Reflection: 1400, Afterglow: 1600},
			},
			ir.ChronoMorning: {
				{Arrival: 1000, Engagement: 900, Resolution: 900, Reflection: 1000, Afterglow: 1000},
				{Arrival: 900, Engagement: 950, Resolution: 1000, Reflection: 900, Afterglow: 1100},
			},
			ir.ChronoNoon: {
				{Arrival: 700, Engagement: 800, Resolution: 750, Reflection: 800, Afterglow: 700},
				{Arrival: 750, Engagement: 700, Resolution: 800, Reflection: 850, Afterglow: 650},
			},
			ir.ChronoDusk: {
				{Arrival: 1200, Engagement: 1000, Resolution: 1300, Reflection: 1400, Afterglow: 1700},
				{Arrival: 1100, Engagement: 1100, Resolution: 1200, Reflection: 1500, Afterglow: 1800},
			},
			ir.ChronoNight: {
				{Arrival: 1600, Engagement: 1200, Resolution: 1400, Reflection: 1800, Afterglow: 2000},
				{Arrival: 1500, Engagement: 1300, Resolution: 1500, Reflection: 1700, Afterglow: 2200},
			},
			ir.ChronoLiminal: {
				{Arrival: 1800, Engagement: 1400, Resolution: 1000, Reflection: 2000, Afterglow: 2400},
				{Arrival: 2000, Engagement: 1200, Resolution: 900, Reflection: 2200, Afterglow: 2600},
			},
		},
		AccentOffsets: []int64{30, 60, 120, 150, 180, 210},
	}
}

// Validate checks that every enumerated value has a non-empty table entry.
// Compose performs the same lookups lazily; Validate lets a host reject a
// bad table set at startup.
func (t Tables) Validate() error {
	for _, sig := range ir.Signatures() {
		ramp, ok := t.HueRamps[sig]
		if !ok {
			return missingEntry("signature", string(sig))
		}
		if len(ramp.Hues) == 0 || len(ramp.Saturation) == 0 || len(ramp.Lightness) == 0 {
			return emptyTable(fmt.Sprintf("hue_ramps[%s]", sig))
		}
	}
	for _, form := range ir.Forms() {
		motifs, ok := t.Motifs[form]
		if !ok {
			return missingEntry("form", string(form))
		}
		if len(motifs) == 0 {
			return emptyTable(fmt.Sprintf("motifs[%s]", form))
		}
	}
	for _, chrono := range ir.Chronos() {
		sets, ok := t.Durations[chrono]
		if !ok {
			return missingEntry("chrono", string(chrono))
		}
		if len(sets) == 0 {
			return emptyTable(fmt.Sprintf("durations[%s]", chrono))
		}
	}
	if len(t.AccentOffsets) == 0 {
		return emptyTable("accent_offsets")
	}
	return nil
}

func missingEntry(field, value string) *ir.ConfigurationError {
	return &ir.ConfigurationError{
		Code:    ir.ErrCodeUnknownEnum,
		Field:   field,
		Message: fmt.Sprintf("no table entry for %q", value),
	}
}

func emptyTable(field string) *ir.ConfigurationError {
	return &ir.ConfigurationError{
		Code:    ir.ErrCodeMissingTable,
		Field:   field,
		Message: "table is empty",
	}
}
