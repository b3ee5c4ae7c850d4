package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"classrefresh/internal/catalog"
)

const (
	DefaultAggregateCollection = "all_classes"
	DefaultAggregateKey        = "all"
)

// Snapshot is every known course keyed by its stringified id.
type Snapshot map[string]catalog.Course

// Aggregator maintains the single snapshot document of every course.
//
// Updates are a read-modify-write of the whole document, they are serialized
// through the Aggregator so it must be the only writer of its document.
type Aggregator struct {
	docs       DocumentStore
	collection string
	key        string

	mutex sync.Mutex
}

// NewAggregator uses the default collection and key when they are empty.
func NewAggregator(docs DocumentStore, collection, key string) *Aggregator {
	if collection == "" {
		collection = DefaultAggregateCollection
	}
	if key == "" {
		key = DefaultAggregateKey
	}
	return &Aggregator{
		docs:       docs,
		collection: collection,
		key:        key,
	}
}

func (a *Aggregator) read(ctx context.Context) (Snapshot, error) {
	serialized, err := a.docs.Get(ctx, a.collection, a.key)
	if errors.Is(err, ErrNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read aggregate: %w", err)
	}
	snapshot := Snapshot{}
	err = json.Unmarshal(serialized, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode aggregate: %w", err)
	}
	return snapshot, nil
}

func (a *Aggregator) write(ctx context.Context, snapshot Snapshot) error {
	serialized, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	err = a.docs.Set(ctx, a.collection, a.key, serialized)
	if err != nil {
		return fmt.Errorf("write aggregate: %w", err)
	}
	return nil
}

// Upsert sets the course's entry in the snapshot, creating the snapshot if it
// does not exist yet.
func (a *Aggregator) Upsert(ctx context.Context, course catalog.Course) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	snapshot, err := a.read(ctx)
	if err != nil {
		return err
	}
	snapshot[course.Key()] = course
	return a.write(ctx, snapshot)
}

// Snapshot returns the current snapshot, an empty one if nothing has been
// written yet.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.read(ctx)
}

// Rebuild replaces the snapshot with every course in `source`.
func (a *Aggregator) Rebuild(ctx context.Context, source Lister) (Snapshot, error) {
	courses, err := source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	snapshot := make(Snapshot, len(courses))
	for _, course := range courses {
		snapshot[course.Key()] = course
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	err = a.write(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
