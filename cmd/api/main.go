package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thedump/internal/api"
	"thedump/internal/app"
	"thedump/internal/config"
	"thedump/internal/pipeline"
	"thedump/internal/workflows"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	app.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()
	if err := a.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	var enq pipeline.Enqueuer
	switch cfg.Orchestrator {
	case "temporal":
		c, err := a.DialTemporal()
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()
		enq = workflows.NewStarter(c, cfg)
	default:
		orch := a.Orchestrator()
		enq = orch
		watchdog := a.Watchdog(orch)
		eg.Go(func() error { return orch.Run(ctx) })
		eg.Go(func() error { return watchdog.Run(ctx) })
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(a.Ingest(enq), a.Store, a.Search).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	eg.Go(func() error {
		slog.Info("API listening.", "addr", cfg.APIAddr, "orchestrator", cfg.Orchestrator, "workers", cfg.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("API stopped with error.", "error", err)
		os.Exit(1)
	}
	slog.Info("API stopped.")
}
