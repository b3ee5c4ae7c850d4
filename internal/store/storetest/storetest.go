// Package storetest holds the behavior every store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"classrefresh/internal/catalog"
	"classrefresh/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string {
	return &s
}

// Course returns a fully populated course with the given id, LastUpdated is
// truncated to the second since that is what relational stores keep.
func Course(id int64) catalog.Course {
	return catalog.Course{
		ID:       id,
		Code:     "ABC 123",
		Name:     "Class A",
		Credits:  3,
		Seats:    catalog.SeatCount{Capacity: 58, Actual: 57, Remaining: 0},
		Waitlist: catalog.SeatCount{Capacity: 30, Actual: 27, Remaining: 3},

		Restrictions:  strptr("a restriction"),
		Prerequisites: strptr("a prerequisite"),

		LastUpdated: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func requireCourse(t testing.TB, expected, got catalog.Course) {
	t.Helper()
	diff := cmp.Diff(expected, got)
	if diff != "" {
		t.Fatalf("course mismatch (-expected +got):\n%s", diff)
	}
}

// TestStore runs the sink contract against an empty store.
func TestStore(t *testing.T, s store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		_, err := s.Get(ctx, 80007)
		require.ErrorIs(t, err, store.ErrNotFound)

		courses, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, courses, 0)
	}

	first := Course(80007)
	{
		err := s.Upsert(ctx, first)
		require.NoError(t, err)

		got, err := s.Get(ctx, 80007)
		require.NoError(t, err)
		requireCourse(t, first, got)
	}

	// writing the same course again is a no-op
	{
		err := s.Upsert(ctx, first)
		require.NoError(t, err)

		courses, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		requireCourse(t, first, courses[0])
	}

	// writes replace the whole record, cleared clauses included
	replaced := first
	replaced.Name = "Class A (renamed)"
	replaced.Seats = catalog.SeatCount{Capacity: 58, Actual: 60, Remaining: -2}
	replaced.Restrictions = nil
	replaced.Prerequisites = nil
	replaced.LastUpdated = first.LastUpdated.Add(time.Hour)
	{
		err := s.Upsert(ctx, replaced)
		require.NoError(t, err)

		got, err := s.Get(ctx, 80007)
		require.NoError(t, err)
		requireCourse(t, replaced, got)
	}

	second := Course(80008)
	second.Name = "Class B"
	second.Code = "CBA 321"
	second.Prerequisites = strptr("")
	{
		err := s.Upsert(ctx, second)
		require.NoError(t, err)

		courses, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, courses, 2)
		requireCourse(t, replaced, courses[0])
		requireCourse(t, second, courses[1])
	}
}

// TestDocumentStore runs the document store contract against an empty store.
func TestDocumentStore(t *testing.T, docs store.DocumentStore) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	{
		_, err := docs.Get(ctx, "classes", "80007")
		require.ErrorIs(t, err, store.ErrNotFound)

		documents, err := docs.List(ctx, "classes")
		require.NoError(t, err)
		require.Len(t, documents, 0)
	}

	require.NoError(t, docs.Set(ctx, "classes", "80007", []byte(`{"id":80007}`)))
	require.NoError(t, docs.Set(ctx, "classes", "80008", []byte(`{"id":80008}`)))
	require.NoError(t, docs.Set(ctx, "all_classes", "all", []byte(`{}`)))
	require.NoError(t, docs.Set(ctx, "classes", "80007", []byte(`{"id":80007,"name":"Class A"}`)))

	{
		value, err := docs.Get(ctx, "classes", "80007")
		require.NoError(t, err)
		require.Equal(t, `{"id":80007,"name":"Class A"}`, string(value))
	}
	{
		documents, err := docs.List(ctx, "classes")
		require.NoError(t, err)
		require.Equal(t, map[string][]byte{
			"80007": []byte(`{"id":80007,"name":"Class A"}`),
			"80008": []byte(`{"id":80008}`),
		}, documents)
	}
	{
		documents, err := docs.List(ctx, "all_classes")
		require.NoError(t, err)
		require.Equal(t, map[string][]byte{"all": []byte(`{}`)}, documents)
	}
}
