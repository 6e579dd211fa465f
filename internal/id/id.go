// Package id provides job ID generators.
package id

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Sequence hands out increasing decimal IDs starting at 1.
type Sequence struct {
	next atomic.Int64
}

// NewSequence creates a Sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewID returns the next number in the sequence.
func (s *Sequence) NewID() (string, error) {
	return strconv.FormatInt(s.next.Add(1), 10), nil
}

// UUID creates UUID v7 strings.
type UUID struct{}

// NewUUID creates a UUID generator.
func NewUUID() UUID {
	return UUID{}
}

// NewID returns a UUID7 string.
func (UUID) NewID() (string, error) {
	v, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return v.String(), nil
}

// Generator is satisfied by Sequence and UUID.
type Generator interface {
	NewID() (string, error)
}

// ForScheme returns the generator named by scheme ("sequential" or "uuid").
func ForScheme(scheme string) (Generator, error) {
	switch scheme {
	case "", "sequential":
		return NewSequence(), nil
	case "uuid":
		return NewUUID(), nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}
}
