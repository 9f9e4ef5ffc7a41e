package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"thedump/internal/config"
	"thedump/internal/extract"
	"thedump/internal/gcp"
	"thedump/internal/ingest"
	"thedump/internal/objectstore"
	"thedump/internal/pipeline"
	"thedump/internal/search"
	"thedump/internal/storage"
	"thedump/internal/util"

	tclient "go.temporal.io/sdk/client"
)

// App holds the components selected by configuration. Binaries build one
// App and wire the runtime they need on top of it.
type App struct {
	Config    config.Config
	Store     storage.StatusStore
	Objects   objectstore.Store
	Index     search.Index
	Extractor *extract.Chain
	Stages    *pipeline.Stages
	Runner    *pipeline.Runner
	Search    *search.Service

	pg        *storage.DB
	sqlite    *sql.DB
	migrators []func(context.Context) error
	closers   []func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if err := a.buildStore(ctx); err != nil {
		return err
	}
	if err := a.buildObjects(ctx); err != nil {
		return err
	}
	if err := a.buildIndex(ctx); err != nil {
		return err
	}
	chain, err := extract.NewChain(ctx, cfg, a.Objects)
	if err != nil {
		return err
	}
	a.Extractor = chain
	a.closers = append(a.closers, chain.Close)

	a.Stages = pipeline.NewStages(a.Store, a.Extractor, a.Index)
	a.Runner = pipeline.NewRunner(a.Stages, pipeline.PolicyFromConfig(cfg), cfg.DocumentTimeout)
	a.Search = search.NewService(a.Index, a.Store, cfg.SearchLimit)

	refs := make([]string, 0)
	for _, r := range chain.Refs() {
		refs = append(refs, r.Raw)
	}
	slog.Info("Components ready.",
		"statusBackend", cfg.StatusBackend,
		"objectBackend", cfg.ObjectBackend,
		"indexBackend", cfg.IndexBackend,
		"extractors", strings.Join(refs, "|"),
		"orchestrator", cfg.Orchestrator,
	)
	return nil
}

func (a *App) postgres(ctx context.Context) (*storage.DB, error) {
	if a.pg != nil {
		return a.pg, nil
	}
	db, err := storage.NewDB(ctx, a.Config.PostgresURL)
	if err != nil {
		return nil, err
	}
	a.pg = db
	a.closers = append(a.closers, func() error { db.Close(); return nil })
	a.migrators = append(a.migrators, db.Migrate)
	return db, nil
}

func (a *App) sqliteDB() (*sql.DB, error) {
	if a.sqlite != nil {
		return a.sqlite, nil
	}
	if err := ensureParent(a.Config.SQLitePath); err != nil {
		return nil, err
	}
	db, err := storage.OpenSQLite(a.Config.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.sqlite = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) buildStore(ctx context.Context) error {
	switch a.Config.StatusBackend {
	case "postgres":
		db, err := a.postgres(ctx)
		if err != nil {
			return err
		}
		a.Store = storage.NewDocumentRepo(db)
	case "sqlite":
		db, err := a.sqliteDB()
		if err != nil {
			return err
		}
		st := storage.NewSQLiteStore(db)
		a.Store = st
		a.migrators = append(a.migrators, st.Migrate)
	case "firestore":
		client, err := gcp.NewFirestoreClient(ctx, a.Config.FirestoreProject)
		if err != nil {
			return err
		}
		a.Store = storage.NewFirestoreStore(client, a.Config.FirestoreCollection)
		a.closers = append(a.closers, client.Close)
	case "memory":
		a.Store = storage.NewMemoryStore()
	default:
		return fmt.Errorf("unknown status backend %q", a.Config.StatusBackend)
	}
	return nil
}

func (a *App) buildObjects(ctx context.Context) error {
	switch a.Config.ObjectBackend {
	case "gcs":
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return err
		}
		a.Objects = objectstore.NewGCSStore(client, a.Config.GCSBucket)
		a.closers = append(a.closers, client.Close)
	case "local":
		store, err := objectstore.NewLocalStore(a.Config.LocalDataRoot)
		if err != nil {
			return err
		}
		a.Objects = store
	default:
		return fmt.Errorf("unknown object backend %q", a.Config.ObjectBackend)
	}
	return nil
}

func (a *App) buildIndex(ctx context.Context) error {
	hl := search.Highlight{Pre: a.Config.HighlightPreTag, Post: a.Config.HighlightPostTag}
	switch a.Config.IndexBackend {
	case "postgres":
		db, err := a.postgres(ctx)
		if err != nil {
			return err
		}
		idx := search.NewPostgresIndex(db.Pool, hl)
		a.Index = idx
		a.migrators = append(a.migrators, idx.Migrate)
	case "sqlite":
		db, err := a.sqliteDB()
		if err != nil {
			return err
		}
		idx := search.NewSQLiteIndex(db, hl)
		a.Index = idx
		a.migrators = append(a.migrators, idx.Migrate)
	case "elasticsearch":
		idx, err := search.NewElasticIndex(splitList(a.Config.ElasticAddresses), a.Config.ElasticIndex, hl)
		if err != nil {
			return err
		}
		a.Index = idx
		a.migrators = append(a.migrators, idx.EnsureIndex)
	case "memory":
		a.Index = search.NewMemoryIndex(hl)
	default:
		return fmt.Errorf("unknown index backend %q", a.Config.IndexBackend)
	}
	return nil
}

// Migrate creates the schemas of every SQL backend in use and the
// Elasticsearch index when it is missing. It is idempotent.
func (a *App) Migrate(ctx context.Context) error {
	for _, m := range a.migrators {
		if err := m(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ingest builds the upload service on top of enq.
func (a *App) Ingest(enq pipeline.Enqueuer) *ingest.Service {
	return ingest.NewService(a.Objects, a.Store, enq, a.Config.MaxUploadBytes)
}

// Orchestrator builds the in-process worker pool.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(a.Runner, a.Config.Workers, a.Config.QueueSize)
}

// Watchdog builds the timeout sweep. A nil enqueuer disables requeueing.
func (a *App) Watchdog(enq pipeline.Enqueuer) *pipeline.Watchdog {
	return pipeline.NewWatchdog(a.Stages, enq, a.Config.DocumentTimeout, a.Config.WatchdogInterval)
}

func (a *App) DialTemporal() (tclient.Client, error) {
	c, err := tclient.Dial(tclient.Options{
		HostPort: a.Config.TemporalAddress,
		Logger:   slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", a.Config.TemporalAddress, err)
	}
	return c, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func ensureParent(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	return util.EnsureDir(filepath.Dir(path))
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
