package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, "memory", cfg.Store.Driver)
	require.Equal(t, "fs", cfg.Archive.Driver)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
store:
  driver: sqlite
  sqlite_path: /tmp/catalog.db
archive:
  driver: memory
log:
  level: debug
  development: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, "/tmp/catalog.db", cfg.Store.SQLitePath)
	require.Equal(t, "memory", cfg.Archive.Driver)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Development)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\n"), 0o644))

	t.Setenv("SAMPLECORE_LISTEN", ":7070")
	t.Setenv("SAMPLECORE_STORE_DRIVER", "postgres")
	t.Setenv("SAMPLECORE_POSTGRES_DSN", "postgres://db.internal/catalog")
	t.Setenv("SAMPLECORE_ARCHIVE_DRIVER", "s3")
	t.Setenv("SAMPLECORE_ARCHIVE_S3_BUCKET", "catalog-archives")
	t.Setenv("SAMPLECORE_ARCHIVE_S3_PATH_STYLE", "TRUE")
	t.Setenv("SAMPLECORE_LOG_DEVELOPMENT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Listen)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.Equal(t, "postgres://db.internal/catalog", cfg.Store.PostgresDSN)
	require.Equal(t, "s3", cfg.Archive.Driver)
	require.Equal(t, "catalog-archives", cfg.Archive.S3.Bucket)
	require.True(t, cfg.Archive.S3.PathStyle)
	require.True(t, cfg.Log.Development)
}

func TestValidateRejectsBadDrivers(t *testing.T) {
	t.Setenv("SAMPLECORE_STORE_DRIVER", "mongodb")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidateS3RequiresBucket(t *testing.T) {
	t.Setenv("SAMPLECORE_ARCHIVE_DRIVER", "s3")
	_, err := Load("")
	require.Error(t, err)
}
