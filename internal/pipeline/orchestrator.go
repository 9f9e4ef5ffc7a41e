package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"thedump/internal/metrics"

	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("pipeline queue is full")

// Enqueuer hands a document id to whichever runtime processes documents.
// It must not wait for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, documentID string) error
}

// Orchestrator is the in-process runtime: a bounded queue drained by at
// most `workers` concurrent runs.
type Orchestrator struct {
	runner  *Runner
	queue   chan string
	workers int

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewOrchestrator(runner *Runner, workers, queueSize int) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Orchestrator{
		runner:   runner,
		queue:    make(chan string, queueSize),
		workers:  workers,
		inFlight: map[string]bool{},
	}
}

func (o *Orchestrator) Enqueue(ctx context.Context, documentID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case o.queue <- documentID:
		metrics.QueueDepth.Inc()
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, documentID)
	}
}

// Run drains the queue until ctx is cancelled, then waits for in-flight
// documents to settle.
func (o *Orchestrator) Run(ctx context.Context) error {
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	slog.Info("Pipeline workers started.", "workers", o.workers, "queueSize", cap(o.queue))
	for {
		select {
		case <-ctx.Done():
			err := eg.Wait()
			slog.Info("Pipeline workers stopped.")
			return err
		case id := <-o.queue:
			metrics.QueueDepth.Dec()
			if !o.begin(id) {
				continue
			}
			eg.Go(func() error {
				defer o.end(id)
				if _, err := o.runner.Process(ctx, id); err != nil && ctx.Err() == nil {
					slog.Error("Document run aborted.", "documentId", id, "error", err)
				}
				return nil
			})
		}
	}
}

func (o *Orchestrator) begin(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[id] {
		return false
	}
	o.inFlight[id] = true
	return true
}

func (o *Orchestrator) end(id string) {
	o.mu.Lock()
	delete(o.inFlight, id)
	o.mu.Unlock()
}

func (o *Orchestrator) Pending() int { return len(o.queue) }
