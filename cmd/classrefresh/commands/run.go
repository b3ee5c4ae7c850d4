package commands

import (
	"context"
	"log/slog"
	"time"

	"classrefresh/internal/alert"
	"classrefresh/internal/catalog"
	"classrefresh/internal/components/chrono"
	"classrefresh/internal/components/telemetry"
	"classrefresh/internal/pipeline"
	"classrefresh/internal/store"
	"classrefresh/lib/configutil/sqlconfig"
	"classrefresh/lib/serviceutil"

	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var (
	runStart     *int64
	runEnd       *int64
	runTerm      *string
	runDb        *string
	runMalformed *string
	runAggregate *string
	runDumpDir   *string
)

func init() {
	runStart = runCmd.Flags().Int64("start", 0, "The first id to check.")
	runEnd = runCmd.Flags().Int64("end", 0, "The id to stop at (exclusive).")
	runTerm = runCmd.Flags().String("term", "", "The term to fetch, ex. 202008.")
	runDb = runCmd.Flags().String("db", "", "Write to this sqlite file instead of the configured database.")
	runMalformed = runCmd.Flags().String("malformed", "", "What to do with pages that cannot be parsed (skip|abort).")
	runAggregate = runCmd.Flags().String("aggregate", "", "How to maintain the aggregate snapshot (incremental|rebuild|off).")
	runDumpDir = runCmd.Flags().String("dump-dir", "", "Write every http exchange with the catalog to this directory.")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides the config with every flag that was set.
func applyRunFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("start") {
		cfg.Run.Start = *runStart
	}
	if flags.Changed("end") {
		cfg.Run.End = *runEnd
	}
	if flags.Changed("term") {
		cfg.Run.Term = *runTerm
	}
	if flags.Changed("db") {
		cfg.Database = sqlconfig.Struct{
			Dialect: sqlconfig.DialectSqlite,
			File:    *runDb,
		}
	}
	if flags.Changed("malformed") {
		cfg.Run.MalformedPolicy = pipeline.MalformedPolicy(*runMalformed)
	}
	if flags.Changed("aggregate") {
		cfg.Run.AggregateMode = pipeline.AggregateMode(*runAggregate)
	}
	if flags.Changed("dump-dir") {
		cfg.Catalog.DumpDir = *runDumpDir
	}
}

var runCmd = &cobra.Command{
	Use:   "run [--start <id>] [--end <id>] [--term <term>] [--db <path/to/classes.db>]",
	Short: "Fetches every id in [start, end) and writes the courses found to the stores.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := config
		applyRunFlags(cmd, &cfg)

		otel, err := telemetry.SetupFromEnv(ctx, "classrefresh")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer otel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx, time.Second*15)

		a, err := openApp(ctx, cfg)
		if err != nil {
			serviceutil.Fatal("failed to open stores", err)
		}
		defer a.Close()

		runID, err := random.String(8)
		if err != nil {
			serviceutil.Fatal("failed to generate run id", err)
		}
		clock := chrono.NewStandardTime()
		tel := telemetry.SlogAPI{RunID: runID}

		fetcher, err := catalog.NewFetcher(cfg.Catalog.FetcherOptions(cfg.Run.Term), tel, clock)
		if err != nil {
			serviceutil.Fatal("failed to create fetcher", err)
		}

		driver, err := pipeline.NewDriver(cfg.Run, pipeline.Options{
			Fetcher:    fetcher,
			Primary:    a.classes,
			Secondary:  []store.Sink{a.documents},
			Aggregator: a.aggregator,
			Retry:      store.RetryOptions{Attempts: cfg.RetryAttempts},
			Telemetry:  tel,
			Time:       clock,
			RunID:      runID,
		})
		if err != nil {
			serviceutil.Fatal("failed to create driver", err)
		}
		summary, err := driver.Run(ctx)
		renderSummary(summary)
		if err != nil {
			if cfg.Alert.Smtp.Enabled() {
				alertErr := alert.NewMailer(cfg.Alert.Smtp).SendRunFailure(context.Background(), cfg.Run, summary, err)
				if alertErr != nil {
					slog.Error("failed to send alert", "err", alertErr)
				}
			}
			a.Close()
			otel.Shutdown(context.Background())
			serviceutil.Fatal("run failed", err)
		}
	},
}
