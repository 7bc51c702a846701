package service

import "time"

// Config controls the snapshot build batch.
type Config struct {
	Workers        int
	RowTimeout     time.Duration
	MaxErrorDetail int
}

func DefaultConfig() Config {
	return Config{
		Workers:        8,
		RowTimeout:     30 * time.Second,
		MaxErrorDetail: 10,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.RowTimeout <= 0 {
		c.RowTimeout = defaults.RowTimeout
	}
	if c.MaxErrorDetail <= 0 {
		c.MaxErrorDetail = defaults.MaxErrorDetail
	}
	return c
}
