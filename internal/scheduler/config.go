package scheduler

import (
	"time"

	"github.com/smallbiznis/medisub/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled      bool
	RunInterval  time.Duration
	JobTimeout   time.Duration
	AbandonAfter time.Duration
	StalledAfter time.Duration
	BatchSize    int
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		RunInterval:  time.Minute,
		JobTimeout:   30 * time.Second,
		AbandonAfter: 30 * time.Minute,
		StalledAfter: 10 * time.Minute,
		BatchSize:    50,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:      cfg.Scheduler.Enabled,
		RunInterval:  cfg.Scheduler.RunInterval,
		AbandonAfter: cfg.Scheduler.AbandonAfter,
		StalledAfter: cfg.Scheduler.StalledAfter,
		BatchSize:    cfg.Scheduler.BatchSize,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.AbandonAfter <= 0 {
		c.AbandonAfter = defaults.AbandonAfter
	}
	if c.StalledAfter <= 0 {
		c.StalledAfter = defaults.StalledAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
