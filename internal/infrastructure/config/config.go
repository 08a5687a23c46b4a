package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all storage engine configuration.
type Config struct {
	Storage StorageConfig
	Archive ArchiveConfig
	Cache   CacheConfig
	Loader  LoaderConfig
	Logging LogConfig
}

// StorageConfig holds persistent store configuration.
type StorageConfig struct {
	Root string `envconfig:"STORAGE_ROOT" default:""`
}

// ArchiveConfig holds cold-tier archiving configuration.
type ArchiveConfig struct {
	AgeThresholdDays   int `envconfig:"ARCHIVE_AGE_THRESHOLD_DAYS" default:"30"`
	SweepIntervalHours int `envconfig:"ARCHIVE_SWEEP_INTERVAL_HOURS" default:"24"`
}

// CacheConfig holds session cache configuration.
type CacheConfig struct {
	Capacity int `envconfig:"CACHE_CAPACITY" default:"50"`
}

// LoaderConfig holds background loader configuration.
type LoaderConfig struct {
	InterTaskDelayMs int `envconfig:"LOADER_INTER_TASK_DELAY_MS" default:"100"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Archive: ArchiveConfig{
			AgeThresholdDays:   30,
			SweepIntervalHours: 24,
		},
		Cache: CacheConfig{
			Capacity: 50,
		},
		Loader: LoaderConfig{
			InterTaskDelayMs: 100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// AgeThreshold returns the archive age threshold as a duration.
func (c ArchiveConfig) AgeThreshold() time.Duration {
	return time.Duration(c.AgeThresholdDays) * 24 * time.Hour
}

// SweepInterval returns the background sweep interval as a duration.
func (c ArchiveConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHours) * time.Hour
}

// InterTaskDelay returns the loader pacing delay as a duration.
func (c LoaderConfig) InterTaskDelay() time.Duration {
	return time.Duration(c.InterTaskDelayMs) * time.Millisecond
}
