package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "repometa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Minute, cfg.Cache.StaleWindow)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, BackendFS, cfg.Cache.Backend)
	assert.Equal(t, "repometa:", cfg.Cache.Prefix)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetch.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Deadline)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "repometa", cfg.HTTP.UserAgent)
	assert.Equal(t, 5, cfg.Batch.Size)
	assert.Equal(t, 150*time.Millisecond, cfg.Batch.Delay)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.BaseURLs["github"])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
cache:
  ttl: 10m
  stale_window: 2m
  backend: sqlite
  dir: /var/cache/repometa
fetch:
  max_attempts: 5
  base_delay: 250ms
base_urls:
  gitea: https://gitea.example.com/api/v1
log:
  format: json
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.StaleWindow)
	assert.Equal(t, BackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, "/var/cache/repometa", cfg.Cache.Dir)
	assert.Equal(t, 5, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.BaseDelay)
	assert.Equal(t, "https://gitea.example.com/api/v1", cfg.BaseURLs["gitea"])
	assert.Equal(t, "json", cfg.Log.Format)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
}

func TestLoadExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "batch:\n  size: 12\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Batch.Size)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REPOMETA_CACHE_TTL", "1h")
	t.Setenv("REPOMETA_CACHE_BACKEND", "none")
	t.Setenv("REPOMETA_HTTP_USER_AGENT", "my-tool/1.0")
	t.Setenv("REPOMETA_BASE_URLS_GITLAB", "https://gitlab.example.com/api/v4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, BackendNone, cfg.Cache.Backend)
	assert.Equal(t, "my-tool/1.0", cfg.HTTP.UserAgent)
	assert.Equal(t, "https://gitlab.example.com/api/v4", cfg.BaseURLs["gitlab"])
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"max entries", "cache:\n  max_entries: 0\n", "cache.max_entries"},
		{"stale window", "cache:\n  ttl: 1m\n  stale_window: 1m\n", "cache.stale_window"},
		{"attempts", "fetch:\n  max_attempts: 0\n", "fetch.max_attempts"},
		{"log format", "log:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
