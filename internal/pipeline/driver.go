// Package pipeline drives a refresh run: every id in a range is fetched,
// parsed and written, one after the other.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"classrefresh/internal/catalog"
	"classrefresh/internal/components/chrono"
	"classrefresh/internal/components/telemetry"
	"classrefresh/internal/store"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_driver_parse       = "driver.parse"
	report_driver_id_mismatch = "driver.id-mismatch"
	report_driver_rebuild     = "driver.rebuild"
	report_driver_run         = "driver.run"
)

var tracer = otel.Tracer("classrefresh/pipeline")

// Fetcher is implemented by *catalog.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, id int64) (catalog.Page, error)
}

type Options struct {
	Fetcher Fetcher
	// Primary is the store courses are read back from when the aggregate is
	// rebuilt.
	Primary store.Store
	// Secondary sinks are written after Primary, in order.
	Secondary []store.Sink
	// Aggregator is optional, without it AggregateMode is ignored.
	Aggregator *store.Aggregator
	Retry      store.RetryOptions

	Telemetry telemetry.API
	Time      chrono.TimeAPI
	// RunID identifies the run in reports, a random one is generated when
	// empty.
	RunID string
}

type Driver struct {
	cfg        Config
	fetcher    Fetcher
	primary    store.Store
	sink       store.Sink
	aggregator *store.Aggregator
	tel        telemetry.API
	time       chrono.TimeAPI
	runID      string
	metrics    metrics
}

func NewDriver(cfg Config, opts Options) (*Driver, error) {
	cfg.SetDefaults()
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("a fetcher was not specified")
	}
	if opts.Primary == nil {
		return nil, fmt.Errorf("a primary store was not specified")
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NoopAPI{}
	}
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}
	if opts.RunID == "" {
		opts.RunID, err = random.String(8)
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
	}

	metrics, err := newMetrics()
	if err != nil {
		return nil, err
	}

	tel := telemetry.NewScopedAPI("pipeline", opts.Telemetry)

	sinks := store.Multi{opts.Primary}
	sinks = append(sinks, opts.Secondary...)
	if opts.Aggregator != nil && cfg.AggregateMode == AggregateIncremental {
		sinks = append(sinks, opts.Aggregator)
	}
	if sleep, ok := opts.Time.(chrono.SleepAPI); ok && opts.Retry.Sleep == nil {
		opts.Retry.Sleep = sleep
	}
	sink := store.NewStamping(
		store.NewRetrying(sinks, opts.Retry, opts.Telemetry),
		opts.Time,
	)

	return &Driver{
		cfg:        cfg,
		fetcher:    opts.Fetcher,
		primary:    opts.Primary,
		sink:       sink,
		aggregator: opts.Aggregator,
		tel:        tel,
		time:       opts.Time,
		runID:      opts.RunID,
		metrics:    metrics,
	}, nil
}

func (d *Driver) RunID() string {
	return d.runID
}

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeWritten
	OutcomeSkipped
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeWritten:
		return "written"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMalformed:
		return "malformed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is what happened to a single id.
type Result struct {
	ID      int64
	Outcome Outcome
	// Course is set when Outcome is OutcomeWritten.
	Course catalog.Course

	RateLimitRetries  int
	ConnectionRetries int
}

// Summary is the tally of a run.
type Summary struct {
	RunID string

	Checked   int
	Written   int
	Skipped   int
	Malformed int

	RateLimited       int
	ConnectionRetries int

	Elapsed time.Duration
}

func (s *Summary) add(result Result) {
	s.Checked++
	switch result.Outcome {
	case OutcomeWritten:
		s.Written++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeMalformed:
		s.Malformed++
	}
	s.RateLimited += result.RateLimitRetries
	s.ConnectionRetries += result.ConnectionRetries
}

// Step fetches, parses and writes a single id.
//
// A non-nil error ends the run, it is one of: the context's error, a
// *catalog.MalformedError under MalformedAbort, or a *store.PersistenceError.
func (d *Driver) Step(ctx context.Context, id int64) (Result, error) {
	ctx, span := tracer.Start(ctx, "step", trace.WithAttributes(
		attribute.Int64("custom.crn", id),
	))
	defer span.End()

	result := Result{ID: id}
	d.tel.ReportDebug("fetching", slog.Any("crn", id))

	page, err := d.fetcher.Fetch(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return result, fmt.Errorf("fetch %d: %w", id, err)
	}
	result.RateLimitRetries = page.RateLimitRetries
	result.ConnectionRetries = page.ConnectionRetries

	course, err := catalog.Parse(page)
	if errors.Is(err, catalog.ErrNotFound) {
		d.tel.ReportInfo("skipping", slog.Any("crn", id))
		result.Outcome = OutcomeSkipped
		return result, nil
	}
	var malformedErr *catalog.MalformedError
	if errors.As(err, &malformedErr) {
		result.Outcome = OutcomeMalformed
		d.tel.ReportWarning(
			report_driver_parse,
			err,
			slog.Any("crn", id),
			slog.Any("detail", malformedErr.Detail),
		)
		if d.cfg.MalformedPolicy == MalformedAbort {
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed page")
			return result, fmt.Errorf("parse %d: %w", id, err)
		}
		return result, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse page")
		return result, fmt.Errorf("parse %d: %w", id, err)
	}

	if course.ID != id {
		d.tel.ReportWarning(
			report_driver_id_mismatch,
			slog.Any("crn", id),
			slog.Any("parsed_crn", course.ID),
		)
	}

	err = d.sink.Upsert(ctx, course)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write course")
		return result, err
	}
	result.Outcome = OutcomeWritten
	result.Course = course
	return result, nil
}

// Run steps through every id in [Start, End) in order.
//
// The returned Summary covers every id checked before an error, if any.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	ctx, span := tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("custom.run_id", d.runID),
		attribute.String("custom.term", d.cfg.Term),
		attribute.Int64("custom.start", d.cfg.Start),
		attribute.Int64("custom.end", d.cfg.End),
	))
	defer span.End()

	started := d.time.Now()
	summary := Summary{RunID: d.runID}

	d.tel.ReportInfo(
		"starting run",
		slog.Any("run_id", d.runID),
		slog.Any("term", d.cfg.Term),
		slog.Any("start", d.cfg.Start),
		slog.Any("end", d.cfg.End),
	)

	var runErr error
	for id := d.cfg.Start; id < d.cfg.End; id++ {
		result, err := d.Step(ctx, id)
		summary.add(result)
		d.metrics.record(ctx, result)
		if err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil && d.aggregator != nil && d.cfg.AggregateMode == AggregateRebuild {
		_, err := d.aggregator.Rebuild(ctx, d.primary)
		if err != nil {
			d.tel.ReportBroken(report_driver_rebuild, err)
			runErr = fmt.Errorf("rebuild aggregate: %w", err)
		}
	}

	summary.Elapsed = d.time.Now().Sub(started)
	d.tel.ReportInfo(
		"total seconds elapsed",
		slog.Any("seconds", summary.Elapsed.Seconds()),
		slog.Any("checked", summary.Checked),
		slog.Any("written", summary.Written),
	)
	d.tel.ReportCount("driver.written", int64(summary.Written))

	if runErr != nil {
		d.tel.ReportBroken(report_driver_run, runErr, slog.Any("run_id", d.runID))
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run failed")
		return summary, runErr
	}
	return summary, nil
}
