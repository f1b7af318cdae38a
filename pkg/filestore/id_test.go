package filestore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorDefaultsToUUID(t *testing.T) {
	id, err := IDGenerator{}.Generate(func(string) bool { return false })
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestIDGeneratorRetriesOnCollision(t *testing.T) {
	candidates := []string{"taken", "taken", "free"}
	next := 0
	g := IDGenerator{New: func() string {
		c := candidates[next]
		next++
		return c
	}}

	id, err := g.Generate(func(id string) bool { return id == "taken" })
	require.NoError(t, err)
	assert.Equal(t, "free", id)
	assert.Equal(t, 3, next)
}

func TestIDGeneratorExhausted(t *testing.T) {
	calls := 0
	g := IDGenerator{New: func() string {
		calls++
		return "taken"
	}}

	_, err := g.Generate(func(string) bool { return true })
	require.ErrorIs(t, err, ErrIdentifierExhausted)
	assert.Equal(t, DefaultIDAttempts, calls)
}

func TestIDGeneratorUnique(t *testing.T) {
	seen := map[string]bool{}
	g := IDGenerator{}

	for range 1000 {
		id, err := g.Generate(func(id string) bool { return seen[id] })
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}
