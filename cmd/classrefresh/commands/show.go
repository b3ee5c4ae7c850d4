package commands

import (
	"errors"
	"fmt"
	"strconv"

	"classrefresh/internal/store"

	"github.com/spf13/cobra"
)

var showDocument *bool

func init() {
	showDocument = showCmd.Flags().Bool("document", false, "Read the course from the document store instead.")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <id> [--document]",
	Short: "Shows a single stored course.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id '%s': %w", args[0], err)
		}

		a, err := openApp(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer a.Close()

		var getter store.Getter = a.classes
		if *showDocument {
			getter = a.documents
		}
		course, err := getter.Get(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no course stored for %d", id)
		}
		if err != nil {
			return err
		}
		renderCourse(course)
		return nil
	},
}
