// Package uuid generates and validates run IDs.
package uuid

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for strings that are not canonical run IDs.
var ErrInvalidID = errors.New("invalid run id")

// Generator creates time-ordered UUID v7 strings, so run IDs sort by start.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Validate checks that id is a canonical, lowercase UUID string.
func Validate(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	if parsed.String() != id {
		return fmt.Errorf("%w: %q is not canonical", ErrInvalidID, id)
	}
	return nil
}

// Short returns the first eight hex digits of id, for file names.
func Short(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
