package testutil

// FixedRunIDGenerator returns the same run id on every call.
//
// Unlike lesson.FixedGenerator which hands out ids in sequence and panics
// when exhausted, this generator never runs out. Scenarios that mount a
// single lesson use it so their traces are byte-identical across runs.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// DefaultRunID is used when NewFixedRunIDGenerator is given an empty id.
const DefaultRunID = "test-run-default"

// NewFixedRunIDGenerator creates a generator that always returns id.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements lesson.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
