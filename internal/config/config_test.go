package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TELEGRAM_API_TOKEN", "DATABASE_URL", "DATABASE_DRIVER", "APP_ENV",
		"STREAK_DAILY_REQUIREMENT", "STREAK_GRACE_BUFFER",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DRIVER", DriverSQLite)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "data/streak.db", cfg.DB.SQLitePath)
	assert.Equal(t, entities.DefaultPolicy(), cfg.Streak.Policy())
	assert.Equal(t, 10*time.Minute, cfg.Streak.PendingActionTTL)
	assert.Equal(t, uint64(5), cfg.Streak.MaxTxRetries)
	assert.Equal(t, "*/5 * * * *", cfg.Streak.FreezeSweepCron)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)

	assert.ErrorIs(t, cfg.RequireTelegram(), ErrMissingEnvironmentVariables)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, `
env: prod
database:
  driver: postgres
  max_connections: 7
streak:
  daily_requirement: 3
  grace_buffer: 3h
metrics:
  addr: ""
`)
	t.Setenv("DATABASE_URL", "postgres://streak@localhost/streak")
	t.Setenv("TELEGRAM_API_TOKEN", "token")
	t.Setenv("STREAK_GRACE_BUFFER", "1h")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, 7, cfg.DB.MaxConnections)
	assert.Equal(t, 3, cfg.Streak.DailyRequirement)
	assert.Equal(t, time.Hour, cfg.Streak.GraceBuffer)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.NoError(t, cfg.RequireTelegram())

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://streak@localhost/streak", dsn)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("postgres without url", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(t.TempDir())
		assert.ErrorIs(t, err, ErrMissingEnvironmentVariables)
	})

	t.Run("unknown driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_DRIVER", "mysql")
		_, err := Load(t.TempDir())
		assert.ErrorIs(t, err, ErrUnknownDriver)
	})

	t.Run("bad policy", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_DRIVER", DriverSQLite)
		t.Setenv("STREAK_DAILY_REQUIREMENT", "0")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(writeConfig(t, "database: [unterminated"))
		assert.Error(t, err)
	})
}
