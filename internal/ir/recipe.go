package ir

import (
	"fmt"
	"time"
)

// Palette holds the four colors of a recipe as "#rrggbb" strings.
type Palette struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
	Glow      string `json:"glow"`
}

// DurationRole names the lesson phase a duration scalar applies to.
type DurationRole string

const (
	RoleArrival    DurationRole = "arrival"
	RoleEngagement DurationRole = "engagement"
	RoleResolution DurationRole = "resolution"
	RoleReflection DurationRole = "reflection"
	RoleAfterglow  DurationRole = "afterglow"
)

// PermilleUnit is the scalar value that leaves a duration unchanged.
const PermilleUnit = 1000

// DurationScalars are per-role stage duration multipliers in permille.
type DurationScalars struct {
	Arrival    int64 `json:"arrival"`
	Engagement int64 `json:"engagement"`
	Resolution int64 `json:"resolution"`
	Reflection int64 `json:"reflection"`
	Afterglow  int64 `json:"afterglow"`
}

// For returns the scalar for role, or PermilleUnit for an unknown role.
func (s DurationScalars) For(role DurationRole) int64 {
	switch role {
	case RoleArrival:
		return s.Arrival
	case RoleEngagement:
		return s.Engagement
	case RoleResolution:
		return s.Resolution
	case RoleReflection:
		return s.Reflection
	case RoleAfterglow:
		return s.Afterglow
	default:
		return PermilleUnit
	}
}

// RenderRecipe is the derived visual/timing recipe for one SelectorTuple.
// It is an immutable value; share it freely.
type RenderRecipe struct {
	// ID is TupleID of the tuple the recipe was composed from.
	ID string `json:"id"`

	Palette     Palette         `json:"palette"`
	Scalars     DurationScalars `json:"stage_duration_scalars"`
	MotifFamily string          `json:"motif_family"`

	// OutcomeSeed is drawn from the tuple's stream and drives
	// ChooseOutcome, so template selection is tied to the seed.
	OutcomeSeed uint64 `json:"outcome_seed"`
}

// Scale applies the role's scalar to a base duration.
func (r RenderRecipe) Scale(role DurationRole, base time.Duration) time.Duration {
	return base * time.Duration(r.Scalars.For(role)) / PermilleUnit
}

// ChooseOutcome picks an index in [0, n) from the recipe's outcome seed.
// Returns -1 when n <= 0.
func (r RenderRecipe) ChooseOutcome(n int) int {
	if n <= 0 {
		return -1
	}
	return int(r.OutcomeSeed % uint64(n))
}

// Fields returns the recipe as a plain map for canonical serialization.
// OutcomeSeed is rendered as fixed-width hex since canonical numbers are
// limited to int64.
func (r RenderRecipe) Fields() map[string]any {
	return map[string]any{
		"id": r.ID,
		"palette": map[string]any{
			"primary":   r.Palette.Primary,
			"secondary": r.Palette.Secondary,
			"accent":    r.Palette.Accent,
			"glow":      r.Palette.Glow,
		},
		"stage_duration_scalars": map[string]any{
			"arrival":    r.Scalars.Arrival,
			"engagement": r.Scalars.Engagement,
			"resolution": r.Scalars.Resolution,
			"reflection": r.Scalars.Reflection,
			"afterglow":  r.Scalars.Afterglow,
		},
		"motif_family": r.MotifFamily,
		"outcome_seed": fmt.Sprintf("%016x", r.OutcomeSeed),
	}
}

// MarshalCanonical returns the canonical JSON encoding of the recipe.
func (r RenderRecipe) MarshalCanonical() ([]byte, error) {
	return MarshalCanonical(r.Fields())
}
