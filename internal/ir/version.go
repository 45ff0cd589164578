package ir

// Version constants for recipe schema and engine.
const (
	// RecipeVersion is the render recipe schema version. Bump it whenever
	// the compositor draw order changes, since recipes are not comparable
	// across versions.
	RecipeVersion = "1"

	// EngineVersion is the NaviCue core version.
	EngineVersion = "0.1.0"
)
