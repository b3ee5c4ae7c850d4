package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"classrefresh/internal/catalog/catalogtest"
	"classrefresh/internal/components/chrono/chronotest"
	"classrefresh/internal/components/telemetry/telemetrytest"

	"github.com/stretchr/testify/require"
)

func newTestFetcher(t testing.TB, server *catalogtest.Server, opts FetcherOptions) (*Fetcher, *chronotest.Clock, *telemetrytest.Recorder) {
	clock := chronotest.NewClock(time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC))
	recorder := &telemetrytest.Recorder{}

	opts.Endpoint = server.URL
	if opts.Term == "" {
		opts.Term = "202008"
	}
	fetcher, err := NewFetcher(opts, recorder, clock)
	if err != nil {
		t.Fatal(err)
	}
	return fetcher, clock, recorder
}

func TestFetchCleanPage(t *testing.T) {
	server := catalogtest.NewServer(map[int64][]catalogtest.Response{
		80007: {catalogtest.Page("80007")},
	})
	defer server.Close()

	fetcher, clock, recorder := newTestFetcher(t, server, FetcherOptions{})

	page, err := fetcher.Fetch(context.Background(), 80007)
	require.NoError(t, err)
	require.Equal(t, int64(80007), page.ID)
	require.Equal(t, 0, page.RateLimitRetries)
	require.Equal(t, 0, page.ConnectionRetries)
	require.Empty(t, clock.Sleeps())
	require.Equal(t, 1, server.Hits(80007))
	require.Equal(t, []string{"202008"}, server.Terms())

	course, err := Parse(page)
	require.NoError(t, err)
	require.Equal(t, "Class A", course.Name)

	require.Len(t, recorder.Find(telemetrytest.KindInfo, "checking class"), 1)
}

func TestFetchRateLimited(t *testing.T) {
	server := catalogtest.NewServer(map[int64][]catalogtest.Response{
		80008: {
			catalogtest.Page("ratelimited"),
			catalogtest.Page("ratelimited"),
			catalogtest.Page("80008"),
		},
	})
	defer server.Close()

	fetcher, clock, recorder := newTestFetcher(t, server, FetcherOptions{})

	page, err := fetcher.Fetch(context.Background(), 80008)
	require.NoError(t, err)
	require.Equal(t, 2, page.RateLimitRetries)
	require.Equal(t, []time.Duration{DefaultRateLimitDelay, DefaultRateLimitDelay}, clock.Sleeps())
	require.Equal(t, 3, server.Hits(80008))
	require.Len(t, recorder.Find(telemetrytest.KindInfo, "bandwidth limit exceeded"), 2)

	course, err := Parse(page)
	require.NoError(t, err)
	require.Equal(t, int64(80008), course.ID)
}

func TestFetchConnectionFailure(t *testing.T) {
	server := catalogtest.NewServer(map[int64][]catalogtest.Response{
		80007: {
			catalogtest.Dropped(),
			catalogtest.Dropped(),
			catalogtest.Page("80007"),
		},
	})
	defer server.Close()

	fetcher, clock, recorder := newTestFetcher(t, server, FetcherOptions{})

	page, err := fetcher.Fetch(context.Background(), 80007)
	require.NoError(t, err)
	require.Equal(t, 2, page.ConnectionRetries)
	require.Equal(t, []time.Duration{DefaultConnectionRetryDelay, DefaultConnectionRetryDelay}, clock.Sleeps())
	require.Equal(t, 3, server.Hits(80007))
	require.Len(t, recorder.Find(telemetrytest.KindInfo, "connection failed"), 2)
}

func TestFetchNotFoundIsNotRetried(t *testing.T) {
	server := catalogtest.NewServer(nil)
	defer server.Close()

	fetcher, clock, _ := newTestFetcher(t, server, FetcherOptions{})

	page, err := fetcher.Fetch(context.Background(), 80009)
	require.NoError(t, err)
	require.Empty(t, clock.Sleeps())

	_, err = Parse(page)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchMaxAttempts(t *testing.T) {
	server := catalogtest.NewServer(map[int64][]catalogtest.Response{
		80007: {catalogtest.Page("ratelimited")},
	})
	defer server.Close()

	fetcher, clock, recorder := newTestFetcher(t, server, FetcherOptions{
		MaxAttempts:    3,
		RateLimitDelay: time.Second,
	})

	_, err := fetcher.Fetch(context.Background(), 80007)
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Equal(t, 3, server.Hits(80007))
	require.Len(t, clock.Sleeps(), 3)
	require.Len(t, recorder.Find(telemetrytest.KindBroken, "fetcher.fetch"), 1)
}

func TestFetchCancelled(t *testing.T) {
	server := catalogtest.NewServer(map[int64][]catalogtest.Response{
		80007: {catalogtest.Page("ratelimited")},
	})
	defer server.Close()

	fetcher, _, _ := newTestFetcher(t, server, FetcherOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, 80007)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTargetURL(t *testing.T) {
	recorder := &telemetrytest.Recorder{}
	clock := chronotest.NewClock(time.Time{})

	{
		fetcher, err := NewFetcher(FetcherOptions{
			Endpoint: "https://oscar.example.edu/pls/bprod/bwckschd.p_disp_detail_sched",
			Term:     "202008",
		}, recorder, clock)
		require.NoError(t, err)
		require.Equal(
			t,
			"https://oscar.example.edu/pls/bprod/bwckschd.p_disp_detail_sched?crn_in=80007&term_in=202008",
			fetcher.TargetURL(80007),
		)
	}
	{
		fetcher, err := NewFetcher(FetcherOptions{
			Endpoint: "https://catalog.example.edu/terms/{term}/sections/{id}",
			Term:     "202008",
		}, recorder, clock)
		require.NoError(t, err)
		require.Equal(t, "https://catalog.example.edu/terms/202008/sections/80007", fetcher.TargetURL(80007))
	}
	{
		_, err := NewFetcher(FetcherOptions{}, recorder, clock)
		require.Error(t, err)
	}
}

func TestFetchDumpDir(t *testing.T) {
	server := catalogtest.NewServer(map[int64][]catalogtest.Response{
		80007: {catalogtest.Page("ratelimited"), catalogtest.Page("80007")},
	})
	defer server.Close()

	dir := t.TempDir()
	fetcher, _, _ := newTestFetcher(t, server, FetcherOptions{DumpDir: dir})

	_, err := fetcher.Fetch(context.Background(), 80007)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"1-80007.txt", "2-80007.txt"}, names)

	dumped, err := os.ReadFile(filepath.Join(dir, "2-80007.txt"))
	require.NoError(t, err)
	require.Contains(t, string(dumped), "crn_in=80007")
	require.Contains(t, string(dumped), "Class A - 80007 - ABC 123 - A")
}
