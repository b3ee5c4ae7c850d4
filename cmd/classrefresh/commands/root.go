package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"classrefresh/lib/configutil"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool

	// config is read before any subcommand runs
	config Config
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file to read, a <name>.local.json5 next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
}

func initSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}

var rootCmd = &cobra.Command{
	Use:   "classrefresh",
	Short: "classrefresh keeps a local copy of a course catalog's detailed schedule.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initSlog(*verbose)

		cfg, err := configutil.ReadConfig[Config](*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		config = cfg
		return nil
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
