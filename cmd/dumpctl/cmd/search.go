package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search COMPLETED documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Search.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), results)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tDOCUMENT\tFILENAME\tHIGHLIGHT")
		for _, r := range results {
			highlight := ""
			if len(r.Highlight) > 0 {
				highlight = r.Highlight[0]
			}
			fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\n", r.RelevanceScore, r.DocumentID, r.Filename, highlight)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
