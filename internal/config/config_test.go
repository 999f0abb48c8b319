package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DATABASE_PATH", "SERVERS_ROOT", "BACKUP_PATH", "BACKUP_SCHEDULE",
	"LOG_LEVEL", "LOG_JSON", "JWT_SECRET", "ADMIN_PASSWORD_HASH", "ALLOWED_ORIGINS",
	"APP_ENV", "STATS_INTERVAL",
}

// clearEnv unsets every key Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "./ender.db", cfg.DatabasePath)
	assert.Equal(t, "./servers", cfg.ServersRoot)
	assert.Equal(t, "./backups", cfg.BackupPath)
	assert.Empty(t, cfg.BackupSchedule)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, time.Minute, cfg.StatsInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("SERVERS_ROOT", "/srv/minecraft")
	t.Setenv("BACKUP_SCHEDULE", "0 4 * * *")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("APP_ENV", "production")
	t.Setenv("STATS_INTERVAL", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, "/srv/minecraft", cfg.ServersRoot)
	assert.Equal(t, "0 4 * * *", cfg.BackupSchedule)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, 30*time.Second, cfg.StatsInterval)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVERS_ROOT=/data/servers\nPORT=8181\n"), 0o644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "/data/servers", cfg.ServersRoot)
	assert.Equal(t, 8181, cfg.ServerPort)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"PORT", "70000"},
		{"LOG_JSON", "maybe"},
		{"BACKUP_SCHEDULE", "every day"},
		{"STATS_INTERVAL", "soon"},
		{"STATS_INTERVAL", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
