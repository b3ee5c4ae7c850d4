package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"classrefresh/internal/components/chrono"
	"classrefresh/internal/components/telemetry"
	"classrefresh/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_fetcher_fetch = "fetcher.fetch"
)

// RateLimitMarker is the phrase the catalog renders instead of a page when
// the client has been throttled. The response status is 200 either way.
const RateLimitMarker = "exceeded the bandwidth limits"

const (
	DefaultConnectionRetryDelay = 5 * time.Second
	DefaultRateLimitDelay       = 60 * time.Second
	DefaultTimeout              = 30 * time.Second
	DefaultUserAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// ErrAttemptsExhausted is only returned when FetcherOptions.MaxAttempts is set.
var ErrAttemptsExhausted = errors.New("catalog: fetch attempts exhausted")

type FetcherOptions struct {
	// Endpoint is either a url with `{term}` and `{id}` placeholders or a
	// plain url that `term_in` and `crn_in` query params are added to.
	Endpoint string
	Term     string

	UserAgent string
	Timeout   time.Duration

	ConnectionRetryDelay time.Duration
	RateLimitDelay       time.Duration
	// MaxAttempts bounds the number of requests made for a single id,
	// 0 retries forever.
	MaxAttempts int

	// RequestsPerSecond is a client side limit on top of whatever the
	// catalog enforces, 0 disables it.
	RequestsPerSecond float64
	CloudflareBypass  bool

	// DumpDir, when set, receives a text dump of every exchange with the
	// catalog.
	DumpDir string
}

func (o *FetcherOptions) setDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ConnectionRetryDelay <= 0 {
		o.ConnectionRetryDelay = DefaultConnectionRetryDelay
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = DefaultRateLimitDelay
	}
}

// Fetcher retrieves detailed-schedule pages, absorbing connection failures
// and bandwidth throttling by sleeping and retrying.
type Fetcher struct {
	http  *resty.Client
	opts  FetcherOptions
	tel   telemetry.API
	sleep chrono.SleepAPI
}

func NewFetcher(opts FetcherOptions, tel telemetry.API, sleep chrono.SleepAPI) (*Fetcher, error) {
	opts.setDefaults()
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("catalog: an endpoint was not specified")
	}
	if _, err := url.Parse(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("catalog: parse endpoint: %w", err)
	}
	tel = telemetry.NewScopedAPI("catalog", tel)

	client := resty.New()
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if opts.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(client, tel)
	if opts.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("catalog: create dump dir: %w", err)
		}
		restyutil.DumpResponses(client, output, dumpName)
	}

	return &Fetcher{
		http:  client,
		opts:  opts,
		tel:   tel,
		sleep: sleep,
	}, nil
}

func dumpName(res *resty.Response) string {
	if res.RawResponse == nil || res.RawResponse.Request == nil {
		return "page"
	}
	target := res.RawResponse.Request.URL
	if crn := target.Query().Get("crn_in"); crn != "" {
		return crn
	}
	return path.Base(target.Path)
}

// TargetURL is the page url for a candidate id.
func (f *Fetcher) TargetURL(id int64) string {
	idStr := strconv.FormatInt(id, 10)
	if strings.Contains(f.opts.Endpoint, "{id}") || strings.Contains(f.opts.Endpoint, "{term}") {
		replacer := strings.NewReplacer(
			"{term}", url.QueryEscape(f.opts.Term),
			"{id}", idStr,
		)
		return replacer.Replace(f.opts.Endpoint)
	}

	target, err := url.Parse(f.opts.Endpoint)
	if err != nil {
		// validated in NewFetcher
		panic(err)
	}
	query := target.Query()
	query.Set("term_in", f.opts.Term)
	query.Set("crn_in", idStr)
	target.RawQuery = query.Encode()
	return target.String()
}

// Fetch retrieves the page for `id`.
//
// Connection failures and rate limited responses are retried forever (or
// until MaxAttempts), the only error returned otherwise is ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, id int64) (Page, error) {
	target := f.TargetURL(id)
	f.tel.ReportInfo("checking class", slog.Any("crn", id))

	var connectionRetries, rateLimitRetries int
	for attempt := 1; ; attempt++ {
		if f.opts.MaxAttempts > 0 && attempt > f.opts.MaxAttempts {
			f.tel.ReportBroken(report_fetcher_fetch, ErrAttemptsExhausted, id, f.opts.MaxAttempts)
			return Page{}, fmt.Errorf("fetch %d: %w", id, ErrAttemptsExhausted)
		}

		res, err := f.http.R().
			SetContext(ctx).
			Get(target)
		if err != nil {
			if ctx.Err() != nil {
				return Page{}, ctx.Err()
			}
			connectionRetries++
			f.tel.ReportInfo(
				"connection failed, sleeping",
				slog.Any("crn", id),
				slog.Any("delay", f.opts.ConnectionRetryDelay.String()),
				slog.Any("err", err.Error()),
			)
			if err := f.sleep.Sleep(ctx, f.opts.ConnectionRetryDelay); err != nil {
				return Page{}, err
			}
			continue
		}

		page, err := NewPage(id, res.Body())
		if err != nil {
			// goquery only fails when the body cannot be read, which is a
			// connection failure in all but name
			connectionRetries++
			f.tel.ReportWarning(report_fetcher_fetch, err, id)
			if err := f.sleep.Sleep(ctx, f.opts.ConnectionRetryDelay); err != nil {
				return Page{}, err
			}
			continue
		}

		if strings.Contains(page.Text, RateLimitMarker) {
			rateLimitRetries++
			f.tel.ReportInfo(
				"bandwidth limit exceeded, sleeping",
				slog.Any("crn", id),
				slog.Any("delay", f.opts.RateLimitDelay.String()),
			)
			if err := f.sleep.Sleep(ctx, f.opts.RateLimitDelay); err != nil {
				return Page{}, err
			}
			continue
		}

		page.ConnectionRetries = connectionRetries
		page.RateLimitRetries = rateLimitRetries
		return page, nil
	}
}
