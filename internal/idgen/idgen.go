// Package idgen assigns link ids.
//
// Links inserted by one statement share created_at and eviction breaks that
// tie on id, so ids from one process must increase strictly in the order
// they were generated.
package idgen

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator generates link ids.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (uuid.UUID, error)

func (f GeneratorFunc) Generate() (uuid.UUID, error) { return f() }

// DefaultAttempts is how often Ordered calls uuid.NewV7 before giving up.
const DefaultAttempts = 2

var errExhausted = errors.New("id space after the last id is exhausted")

// Ordered produces UUID v7 ids that are strictly greater than every id it
// returned before, even if the wall clock steps backwards.
type Ordered struct {
	mu       sync.Mutex
	last     uuid.UUID
	attempts int
}

// NewOrdered returns an Ordered generator. attempts below 1 means
// DefaultAttempts.
func NewOrdered(attempts int) *Ordered {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	return &Ordered{attempts: attempts}
}

func (g *Ordered) Generate() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var last error
	for range g.attempts {
		id, err := uuid.NewV7()
		if err != nil {
			last = err
			continue
		}
		if bytes.Compare(id[:], g.last[:]) <= 0 {
			if id, err = successor(g.last); err != nil {
				return uuid.Nil, err
			}
		}
		g.last = id
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("link id: uuid v7 failed after %d attempts: %w", g.attempts, last)
}

// successor returns the next id after id in byte order. It keeps the
// timestamp and variant bits and counts up in the random tail.
func successor(id uuid.UUID) (uuid.UUID, error) {
	next := id
	for i := len(next) - 1; i >= 9; i-- {
		next[i]++
		if next[i] != 0 {
			return next, nil
		}
	}
	return uuid.Nil, errExhausted
}
