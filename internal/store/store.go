// Package store persists parsed courses.
//
// Every backend implements Sink with replace semantics keyed on the course
// id, writing the same course twice leaves the store as if it were written
// once.
package store

import (
	"context"
	"errors"
	"fmt"

	"classrefresh/internal/catalog"
)

// ErrNotFound is returned by getters when nothing is stored under a key.
var ErrNotFound = errors.New("store: not found")

// Sink is anything a course can be written to.
type Sink interface {
	// Upsert inserts the course or fully replaces the course with the same id.
	Upsert(ctx context.Context, course catalog.Course) error
}

type Getter interface {
	Get(ctx context.Context, id int64) (catalog.Course, error)
}

// Lister returns every stored course ordered by id.
type Lister interface {
	List(ctx context.Context) ([]catalog.Course, error)
}

// Store is a primary store, one that courses can be read back from.
type Store interface {
	Sink
	Getter
	Lister
}

// PersistenceError is returned once a write has failed every attempt it was
// given, it is fatal for a run.
type PersistenceError struct {
	ID       int64
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: persist course %d (%d attempts): %s", e.ID, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Multi writes a course to every sink in order, stopping at the first error.
type Multi []Sink

func (m Multi) Upsert(ctx context.Context, course catalog.Course) error {
	for _, sink := range m {
		err := sink.Upsert(ctx, course)
		if err != nil {
			return err
		}
	}
	return nil
}
