package lesson

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_GeneratesSortableV7(t *testing.T) {
	gen := UUIDv7Generator{}

	first := gen.Generate()
	second := gen.Generate()

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
	assert.LessOrEqual(t, first, second)
}

func TestFixedGenerator_ReturnsIDsInOrder(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.PanicsWithValue(t, "FixedGenerator: all run ids exhausted", func() {
		gen.Generate()
	})
}
