package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DUMP_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, "the_dump_documents", cfg.ElasticIndex)
	require.Equal(t, 10*time.Minute, cfg.DocumentTimeout)
	require.Equal(t, "local", cfg.Orchestrator)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index_backend: sqlite
status_backend: sqlite
workers: 8
document_timeout: 90s
max_attempts: 5
`), 0o644))
	t.Setenv("DUMP_CONFIG_FILE", path)
	t.Setenv("DUMP_WORKERS", "2")
	t.Setenv("DUMP_MAX_BACKOFF", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.IndexBackend)
	require.Equal(t, "sqlite", cfg.StatusBackend)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, 90*time.Second, cfg.DocumentTimeout)
	require.Equal(t, time.Minute, cfg.MaxBackoff)
}

func TestMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("DUMP_CONFIG_FILE", "")
	t.Setenv("DUMP_WORKERS", "many")
	t.Setenv("DUMP_WATCHDOG_INTERVAL", "soon")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 30*time.Second, cfg.WatchdogInterval)
}

func TestValidateRejectsBadBackends(t *testing.T) {
	cfg := Default()
	cfg.IndexBackend = "solr"
	cfg.ObjectBackend = "gcs"
	cfg.Workers = 0
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "index_backend")
	require.Contains(t, err.Error(), "gcs_bucket is required")
	require.Contains(t, err.Error(), "workers")
}
