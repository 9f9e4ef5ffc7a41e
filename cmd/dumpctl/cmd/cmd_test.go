package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"thedump/internal/app"
	"thedump/internal/config"
	"thedump/internal/models"

	"github.com/stretchr/testify/require"
)

type noQueue struct{}

func (noQueue) Enqueue(context.Context, string) error { return nil }

func run(t *testing.T, args ...string) string {
	t.Helper()
	jsonOutput = false
	configFile = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func localEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DUMP_CONFIG_FILE", "")
	t.Setenv("DUMP_STATUS_BACKEND", "sqlite")
	t.Setenv("DUMP_INDEX_BACKEND", "sqlite")
	t.Setenv("DUMP_SQLITE_PATH", filepath.Join(dir, "dump.db"))
	t.Setenv("DUMP_OBJECT_BACKEND", "local")
	t.Setenv("DUMP_LOCAL_DATA_ROOT", filepath.Join(dir, "objects"))
	t.Setenv("DUMP_EXTRACTORS", "mock")
	t.Setenv("DUMP_ORCHESTRATOR", "local")
	t.Setenv("DUMP_LOG_LEVEL", "error")
}

func TestRequeueProcessesPendingDocumentsLocally(t *testing.T) {
	localEnv(t)
	require.Contains(t, run(t, "migrate"), "schemas up to date")

	cfg, err := config.Load()
	require.NoError(t, err)
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	receipt, err := a.Ingest(noQueue{}).Upload(context.Background(), "harbour.txt", "text/plain", []byte("harbour inspection notes"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	var requeued []requeueResult
	require.NoError(t, json.Unmarshal([]byte(run(t, "requeue", "--older-than", "0s", "--json")), &requeued))
	require.Equal(t, []requeueResult{{DocumentID: receipt.DocumentID, Status: string(models.StatusCompleted)}}, requeued)

	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(run(t, "status", receipt.DocumentID, "--json")), &doc))
	require.Equal(t, models.StatusCompleted, doc.Status)

	var results []models.SearchResult
	require.NoError(t, json.Unmarshal([]byte(run(t, "search", "harbour", "--json")), &results))
	require.Len(t, results, 1)
	require.Equal(t, receipt.DocumentID, results[0].DocumentID)

	require.Contains(t, run(t, "reindex", receipt.DocumentID), "reindexed "+receipt.DocumentID)
	require.Contains(t, run(t, "sweep"), "timed out: 0")
}

func TestVersion(t *testing.T) {
	require.Contains(t, run(t, "version"), Version)
}
