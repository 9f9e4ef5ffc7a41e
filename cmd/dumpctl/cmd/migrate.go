package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create store schemas and the search index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Migrate(cmd.Context()); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"migrated": true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schemas up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
