package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/sigforge_test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 8, cfg.Deployment.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Deployment.WriteTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Deployment.ReapInterval())
	assert.Equal(t, 2*time.Hour, cfg.Deployment.StuckAge())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
provider:
  kind: microsoft
  microsoft_tenant_id: tenant-1
deployment:
  concurrency: 2
  write_timeout_seconds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "microsoft", cfg.Provider.Kind)
	assert.Equal(t, "tenant-1", cfg.Provider.MicrosoftTenantID)
	assert.Equal(t, 2, cfg.Deployment.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Deployment.WriteTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://file-url/db
redis:
  addr: file-redis:6379
`)

	t.Setenv("DATABASE_URL", "postgres://env-url/db")
	t.Setenv("REDIS_ADDR", "env-redis:6379")
	t.Setenv("PROVIDER_KIND", "google")
	t.Setenv("DEPLOYMENT_CONCURRENCY", "16")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-url/db", cfg.Database.URL)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "google", cfg.Provider.Kind)
	assert.Equal(t, 16, cfg.Deployment.Concurrency)
}

func TestLoadFromEnvBadIntIgnored(t *testing.T) {
	path := writeConfig(t, `{}`)

	t.Setenv("DEPLOYMENT_CONCURRENCY", "not-a-number")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Deployment.Concurrency)
}
