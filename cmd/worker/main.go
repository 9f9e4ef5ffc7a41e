package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"thedump/internal/activities"
	"thedump/internal/app"
	"thedump/internal/config"
	"thedump/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	app.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()
	if err := a.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	c, err := a.DialTemporal()
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Workers,
	})
	workflows.Register(w)
	activities.Register(w, activities.New(a.Stages))

	// The watchdog requeues stranded PENDING documents through Temporal.
	watchdog := a.Watchdog(workflows.NewStarter(c, cfg))
	go func() {
		if err := watchdog.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Watchdog stopped.", "error", err)
		}
	}()

	slog.Info("Worker listening.", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "workers", cfg.Workers)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
