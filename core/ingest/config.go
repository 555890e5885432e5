package ingest

import (
	"errors"
	"time"
)

const (
	DefaultPollInterval   = 10 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultDedupSize      = 100
)

// Config tunes the ingest timings.
type Config struct {
	PollInterval   time.Duration `json:"poll_interval"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	FetchTimeout   time.Duration `json:"fetch_timeout"`
	DedupSize      int           `json:"dedup_size"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.DedupSize == 0 {
		c.DedupSize = DefaultDedupSize
	}
}

// Validate checks the configuration after defaults were applied.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect timeout must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}
	if c.DedupSize <= 0 {
		return errors.New("dedup size must be positive")
	}
	return nil
}
