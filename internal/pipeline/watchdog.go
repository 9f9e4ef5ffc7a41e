package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"thedump/internal/models"
)

const sweepBatch = 500

type SweepResult struct {
	TimedOut int `json:"timed_out"`
	Requeued int `json:"requeued"`
}

// Watchdog fails documents that sat in a non-terminal status for longer
// than the document timeout and, when given an enqueuer, re-enqueues
// PENDING documents that nobody picked up.
type Watchdog struct {
	stages   *Stages
	enqueuer Enqueuer
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewWatchdog(stages *Stages, enqueuer Enqueuer, timeout, interval time.Duration) *Watchdog {
	return &Watchdog{stages: stages, enqueuer: enqueuer, timeout: timeout, interval: interval, now: time.Now}
}

func (w *Watchdog) SetClock(now func() time.Time) { w.now = now }

func (w *Watchdog) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := w.now().UTC()

	stale, err := w.stages.Store().ListByStatus(ctx, models.NonTerminal(), now.Add(-w.timeout), sweepBatch)
	if err != nil {
		return res, fmt.Errorf("list stale documents: %w", err)
	}
	for _, doc := range stale {
		msg := fmt.Sprintf("%s: document stayed %s for more than %s", models.ErrTimeout, doc.Status, w.timeout)
		if _, err := w.stages.FailFrom(ctx, doc, msg); err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			return res, fmt.Errorf("fail stale document %s: %w", doc.DocumentID, err)
		}
		slog.Warn("Watchdog failed stuck document.", "documentId", doc.DocumentID, "status", doc.Status)
		res.TimedOut++
	}

	if w.enqueuer == nil {
		return res, nil
	}
	waiting, err := w.stages.Store().ListByStatus(ctx, []models.Status{models.StatusPending}, now.Add(-w.interval), sweepBatch)
	if err != nil {
		return res, fmt.Errorf("list waiting documents: %w", err)
	}
	for _, doc := range waiting {
		if err := w.enqueuer.Enqueue(ctx, doc.DocumentID); err != nil {
			slog.Warn("Watchdog could not requeue document.", "documentId", doc.DocumentID, "error", err)
			break
		}
		res.Requeued++
	}
	return res, nil
}

// Run sweeps once immediately and then every interval until ctx ends.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		res, err := w.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Error("Watchdog sweep failed.", "error", err)
		} else if res.TimedOut > 0 || res.Requeued > 0 {
			slog.Info("Watchdog sweep done.", "timedOut", res.TimedOut, "requeued", res.Requeued)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
