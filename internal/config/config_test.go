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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
  mode: debug
database:
  driver: sqlite
  sqlite_path: /tmp/gating-test.db
jwt:
  secret: s
  expire_hours: 2
gating:
  enabled: false
  reconcile_cron: "*/5 * * * *"
signals:
  publish_to_redis: true
cors:
  allowed_origins: [http://a, http://b]
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/gating-test.db", cfg.Database.SQLitePath)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.False(t, cfg.Gating.Enabled)
	assert.Equal(t, "*/5 * * * *", cfg.Gating.ReconcileCron)
	assert.True(t, cfg.Milestones.Enabled, "defaults apply to omitted sections")
	assert.True(t, cfg.Signals.PublishToRedis)
	assert.Equal(t, "gating_signals", cfg.Signals.RedisChannel)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 100000, cfg.RateLimit.MaxRequests)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.True(t, cfg.Gating.Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := writeConfig(t, "database:\n  driver: sqlite\n")
	t.Setenv("DATABASE_DRIVER", "postgres")

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestLoadConfigReleaseRequiresStrongSecret(t *testing.T) {
	dir := writeConfig(t, "server:\n  mode: release\njwt:\n  secret: short\n")
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")

	dir = writeConfig(t, "server:\n  mode: release\njwt:\n  secret: 0123456789abcdef0123456789abcdef\n")
	_, err = LoadConfig(dir)
	assert.NoError(t, err)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := writeConfig(t, "database:\n  driver: sqlite\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.JWT.Secret)
}
