package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show the lifecycle status of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.Store.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), doc)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Document:  %s\n", doc.DocumentID)
		fmt.Fprintf(out, "Filename:  %s\n", doc.Filename)
		fmt.Fprintf(out, "Status:    %s\n", doc.Status)
		fmt.Fprintf(out, "Location:  %s\n", doc.StorageURI)
		fmt.Fprintf(out, "Created:   %s\n", doc.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Updated:   %s\n", doc.UpdatedAt.Format(time.RFC3339))
		if doc.ErrorMessage != "" {
			fmt.Fprintf(out, "Error:     %s\n", doc.ErrorMessage)
		}
		if doc.RetryOf != "" {
			fmt.Fprintf(out, "Retry of:  %s\n", doc.RetryOf)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
