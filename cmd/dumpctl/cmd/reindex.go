package cmd

import (
	"fmt"

	"thedump/internal/models"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [document-id]",
	Short: "Submit the stored text of a COMPLETED document to the search index again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.Store.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}
		if doc.Status != models.StatusCompleted {
			return fmt.Errorf("%w: document %s is %s, only COMPLETED documents can be reindexed", models.ErrValidation, doc.DocumentID, doc.Status)
		}
		if err := a.Stages.Index(ctx, doc); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"document_id": doc.DocumentID, "reindexed": true})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reindexed %s\n", doc.DocumentID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
