package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("classrefresh/pipeline")

type metrics struct {
	checked     metric.Int64Counter
	written     metric.Int64Counter
	skipped     metric.Int64Counter
	malformed   metric.Int64Counter
	rateLimited metric.Int64Counter
}

func newMetrics() (metrics, error) {
	var m metrics
	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
	}{
		{&m.checked, "classrefresh.ids_checked", "Candidate ids fetched and parsed."},
		{&m.written, "classrefresh.records_written", "Courses written to every sink."},
		{&m.skipped, "classrefresh.ids_skipped", "Candidate ids without a course."},
		{&m.malformed, "classrefresh.records_malformed", "Course pages that could not be parsed."},
		{&m.rateLimited, "classrefresh.rate_limited", "Responses that carried the bandwidth limit marker."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return metrics{}, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m metrics) record(ctx context.Context, result Result) {
	m.checked.Add(ctx, 1)
	switch result.Outcome {
	case OutcomeWritten:
		m.written.Add(ctx, 1)
	case OutcomeSkipped:
		m.skipped.Add(ctx, 1)
	case OutcomeMalformed:
		m.malformed.Add(ctx, 1)
	}
	if result.RateLimitRetries > 0 {
		m.rateLimited.Add(ctx, int64(result.RateLimitRetries))
	}
}
