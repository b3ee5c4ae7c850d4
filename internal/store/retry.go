package store

import (
	"context"
	"log/slog"
	"time"

	"classrefresh/internal/catalog"
	"classrefresh/internal/components/chrono"
	"classrefresh/internal/components/telemetry"

	"github.com/cenkalti/backoff/v4"
)

const (
	report_retrying_upsert = "retrying.upsert"
)

const (
	DefaultRetryAttempts        = 5
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 10 * time.Second
)

type RetryOptions struct {
	// Attempts is the total number of writes tried, including the first.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Sleep waits out the intervals between attempts, it defaults to the
	// system clock.
	Sleep chrono.SleepAPI
}

func (o *RetryOptions) setDefaults() {
	if o.Attempts <= 0 {
		o.Attempts = DefaultRetryAttempts
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = DefaultRetryInitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultRetryMaxInterval
	}
	if o.Sleep == nil {
		o.Sleep = chrono.NewStandardTime()
	}
}

// sleepTimer is a backoff.Timer that fires once SleepAPI returns.
type sleepTimer struct {
	ctx   context.Context
	sleep chrono.SleepAPI
	c     chan time.Time
}

func newSleepTimer(ctx context.Context, sleep chrono.SleepAPI) *sleepTimer {
	return &sleepTimer{ctx: ctx, sleep: sleep}
}

func (t *sleepTimer) Start(d time.Duration) {
	c := make(chan time.Time, 1)
	t.c = c
	go func() {
		if t.sleep.Sleep(t.ctx, d) == nil {
			c <- time.Time{}
		}
	}()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

// Retrying retries failed writes of the sink it wraps with exponential
// backoff, once the attempts run out a *PersistenceError is returned.
type Retrying struct {
	inner Sink
	opts  RetryOptions
	tel   telemetry.API
}

func NewRetrying(inner Sink, opts RetryOptions, tel telemetry.API) Retrying {
	opts.setDefaults()
	return Retrying{
		inner: inner,
		opts:  opts,
		tel:   telemetry.NewScopedAPI("store", tel),
	}
}

func (r Retrying) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.opts.InitialInterval
	exp.MaxInterval = r.opts.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(r.opts.Attempts-1)),
		ctx,
	)
}

func (r Retrying) Upsert(ctx context.Context, course catalog.Course) error {
	attempts := 0
	err := backoff.RetryNotifyWithTimer(
		func() error {
			attempts++
			return r.inner.Upsert(ctx, course)
		},
		r.policy(ctx),
		func(err error, wait time.Duration) {
			r.tel.ReportWarning(
				report_retrying_upsert,
				err,
				slog.Any("crn", course.ID),
				slog.Any("attempt", attempts),
				slog.Any("wait", wait.String()),
			)
		},
		newSleepTimer(ctx, r.opts.Sleep),
	)
	if err != nil {
		r.tel.ReportBroken(report_retrying_upsert, err, slog.Any("crn", course.ID))
		return &PersistenceError{
			ID:       course.ID,
			Attempts: attempts,
			Err:      err,
		}
	}
	return nil
}
