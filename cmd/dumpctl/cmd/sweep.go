package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail documents stuck in a non-terminal status past the timeout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Watchdog(nil).Sweep(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"timed_out": res.TimedOut})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "timed out: %d\n", res.TimedOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
