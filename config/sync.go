package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/lastmile/core/ingest"
)

// SyncConfig tunes the order synchronization.
type SyncConfig struct {
	SnapshotURL           string `json:"snapshot_url"`
	PollIntervalSeconds   int    `json:"poll_interval_seconds"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
	FetchTimeoutSeconds   int    `json:"fetch_timeout_seconds"`
	DedupSize             int    `json:"dedup_size"`
}

// SetDefaults applies sane defaults.
func (c *SyncConfig) SetDefaults() {
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 10
	}
	if c.ConnectTimeoutSeconds == 0 {
		c.ConnectTimeoutSeconds = 10
	}
	if c.FetchTimeoutSeconds == 0 {
		c.FetchTimeoutSeconds = 10
	}
	if c.DedupSize == 0 {
		c.DedupSize = ingest.DefaultDedupSize
	}
}

// Validate checks mandatory fields.
func (c SyncConfig) Validate() error {
	if c.SnapshotURL == "" {
		return fmt.Errorf("snapshot_url is required")
	}
	return c.Ingest().Validate()
}

// Ingest converts the section into the ingest package config.
func (c SyncConfig) Ingest() ingest.Config {
	return ingest.Config{
		PollInterval:   time.Duration(c.PollIntervalSeconds) * time.Second,
		ConnectTimeout: time.Duration(c.ConnectTimeoutSeconds) * time.Second,
		FetchTimeout:   time.Duration(c.FetchTimeoutSeconds) * time.Second,
		DedupSize:      c.DedupSize,
	}
}
