package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every stored course.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer a.Close()

		courses, err := a.classes.List(cmd.Context())
		if err != nil {
			return err
		}
		renderCourses(courses)
		return nil
	},
}
