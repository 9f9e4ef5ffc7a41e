package cmd

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"thedump/internal/models"
	"thedump/internal/workflows"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	requeueOlderThan time.Duration
	requeueLimit     int
)

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Resume PENDING documents that never started processing",
	Long: `Resume PENDING documents that never started processing.

With orchestrator=temporal each document gets its pipeline workflow started.
With orchestrator=local the documents are processed in this process using the
configured number of workers.`,
	Args: cobra.NoArgs,
	RunE: runRequeue,
}

func init() {
	requeueCmd.Flags().DurationVar(&requeueOlderThan, "older-than", time.Minute, "Only documents PENDING for at least this long")
	requeueCmd.Flags().IntVar(&requeueLimit, "limit", 500, "Maximum number of documents")
	rootCmd.AddCommand(requeueCmd)
}

type requeueResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

func runRequeue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.Store.ListByStatus(ctx, []models.Status{models.StatusPending}, time.Now().Add(-requeueOlderThan), requeueLimit)
	if err != nil {
		return fmt.Errorf("list pending documents: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make([]requeueResult, 0, len(docs))
	)
	record := func(r requeueResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	if a.Config.Orchestrator == "temporal" {
		c, err := a.DialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()
		starter := workflows.NewStarter(c, a.Config)
		for _, doc := range docs {
			r := requeueResult{DocumentID: doc.DocumentID, Status: "started"}
			if err := starter.Enqueue(ctx, doc.DocumentID); err != nil {
				r.Status, r.Error = "error", err.Error()
			}
			record(r)
		}
	} else {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(a.Config.Workers)
		for _, doc := range docs {
			id := doc.DocumentID
			eg.Go(func() error {
				status, err := a.Runner.Process(egCtx, id)
				r := requeueResult{DocumentID: id, Status: string(status)}
				if err != nil {
					r.Status, r.Error = "error", err.Error()
					slog.Warn("Requeued document did not finish.", "documentId", id, "error", err)
				}
				record(r)
				return nil
			})
		}
		_ = eg.Wait()
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), results)
	}
	for _, r := range results {
		line := fmt.Sprintf("%s\t%s", r.DocumentID, r.Status)
		if r.Error != "" {
			line += "\t" + r.Error
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "requeued %d document(s)\n", len(results))
	return nil
}
