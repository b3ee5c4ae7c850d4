package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"classrefresh/internal/catalog"
)

// DocumentStore is a keyed document store, documents are opaque bytes
// grouped into collections.
type DocumentStore interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, collection, key string, value []byte) error
	// List returns every document in a collection keyed by document key.
	List(ctx context.Context, collection string) (map[string][]byte, error)
}

const DefaultCourseCollection = "classes"

// DocumentSink stores every course as its own JSON document keyed by id.
type DocumentSink struct {
	docs       DocumentStore
	collection string
}

// NewDocumentSink uses DefaultCourseCollection when `collection` is empty.
func NewDocumentSink(docs DocumentStore, collection string) DocumentSink {
	if collection == "" {
		collection = DefaultCourseCollection
	}
	return DocumentSink{docs: docs, collection: collection}
}

func (s DocumentSink) Upsert(ctx context.Context, course catalog.Course) error {
	serialized, err := json.Marshal(course)
	if err != nil {
		return err
	}
	err = s.docs.Set(ctx, s.collection, course.Key(), serialized)
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", s.collection, course.Key(), err)
	}
	return nil
}

func (s DocumentSink) Get(ctx context.Context, id int64) (catalog.Course, error) {
	serialized, err := s.docs.Get(ctx, s.collection, strconv.FormatInt(id, 10))
	if errors.Is(err, ErrNotFound) {
		return catalog.Course{}, ErrNotFound
	}
	if err != nil {
		return catalog.Course{}, err
	}
	var course catalog.Course
	err = json.Unmarshal(serialized, &course)
	if err != nil {
		return catalog.Course{}, fmt.Errorf("decode document %s/%d: %w", s.collection, id, err)
	}
	return course, nil
}

func (s DocumentSink) List(ctx context.Context) ([]catalog.Course, error) {
	documents, err := s.docs.List(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	courses := make([]catalog.Course, 0, len(documents))
	for key, serialized := range documents {
		var course catalog.Course
		err := json.Unmarshal(serialized, &course)
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", s.collection, key, err)
		}
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}
