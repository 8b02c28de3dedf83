// Package uuid generates crawl run identifiers.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 run IDs. It satisfies
// crawler.IDGenerator.
type Generator struct{}

// New creates a Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Validate parses a run ID and returns its canonical form.
func Validate(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse run id %q: %w", raw, err)
	}
	return id.String(), nil
}

// CreatedAt extracts the embedded timestamp of a v7 run ID.
func CreatedAt(raw string) (time.Time, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id %q: %w", raw, err)
	}
	if id.Version() != 7 {
		return time.Time{}, fmt.Errorf("run id %q is version %d, want 7", raw, id.Version())
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}
