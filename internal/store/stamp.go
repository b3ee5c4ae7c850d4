package store

import (
	"context"

	"classrefresh/internal/catalog"
	"classrefresh/internal/components/chrono"
)

// Stamping sets LastUpdated on every course before passing it on, so every
// sink behind it records the same write time.
type Stamping struct {
	inner Sink
	time  chrono.TimeAPI
}

func NewStamping(inner Sink, time chrono.TimeAPI) Stamping {
	return Stamping{inner: inner, time: time}
}

func (s Stamping) Upsert(ctx context.Context, course catalog.Course) error {
	course.LastUpdated = s.time.Now()
	return s.inner.Upsert(ctx, course)
}
