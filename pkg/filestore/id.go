package filestore

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultIDAttempts is the number of candidates tried before giving up.
const DefaultIDAttempts = 3

// IDGenerator produces identifiers that are not yet in use.
type IDGenerator struct {
	// New produces a candidate. Nil means uuid.NewString.
	New func() string

	// MaxAttempts bounds the candidates tried. 0 means DefaultIDAttempts.
	MaxAttempts int
}

// Generate returns the first candidate for which exists reports false.
//
// Returns:
//   - error: ErrIdentifierExhausted after MaxAttempts collisions
func (g IDGenerator) Generate(exists func(id string) bool) (string, error) {
	newID := uuid.NewString
	if g.New != nil {
		newID = g.New
	}
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultIDAttempts
	}

	for range attempts {
		id := newID()
		if id != "" && !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %d candidates collided", ErrIdentifierExhausted, attempts)
}
