package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recomputes the aggregate snapshot from the relational store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer a.Close()

		snapshot, err := a.aggregator.Rebuild(cmd.Context(), a.classes)
		if err != nil {
			return err
		}
		slog.Info("rebuilt aggregate", "courses", len(snapshot))
		return nil
	},
}
