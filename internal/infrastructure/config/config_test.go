package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30, cfg.Archive.AgeThresholdDays)
	assert.Equal(t, 24, cfg.Archive.SweepIntervalHours)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.Equal(t, 100, cfg.Loader.InterTaskDelayMs)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("STORAGE_ROOT", "/var/lib/sessions")
	t.Setenv("ARCHIVE_AGE_THRESHOLD_DAYS", "7")
	t.Setenv("ARCHIVE_SWEEP_INTERVAL_HOURS", "6")
	t.Setenv("CACHE_CAPACITY", "200")
	t.Setenv("LOADER_INTER_TASK_DELAY_MS", "250")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sessions", cfg.Storage.Root)
	assert.Equal(t, 7, cfg.Archive.AgeThresholdDays)
	assert.Equal(t, 6, cfg.Archive.SweepIntervalHours)
	assert.Equal(t, 200, cfg.Cache.Capacity)
	assert.Equal(t, 250, cfg.Loader.InterTaskDelayMs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30*24*time.Hour, cfg.Archive.AgeThreshold())
	assert.Equal(t, 24*time.Hour, cfg.Archive.SweepInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.Loader.InterTaskDelay())
}
