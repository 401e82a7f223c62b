package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/gate")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
	assert.Equal(t, 1000, cfg.MaxSurfaceConnections)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestLoadRequiresRedisURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_URL is required")
}

func TestLoadRejectsTinyTickInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TICK_INTERVAL", "10ms")

	_, err := Load()
	assert.ErrorContains(t, err, "TICK_INTERVAL must be at least 100ms")
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("MAX_SURFACE_CONNECTIONS", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 50, cfg.MaxSurfaceConnections)
}
