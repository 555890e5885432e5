// Package history persists the order audit trail to SQLite or to rotating
// JSONL files.
package history

import (
	"fmt"

	corehistory "github.com/kilianp07/lastmile/core/history"
)

// Store types.
const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeJSONL  = "jsonl"
)

// Config selects the history backend.
type Config struct {
	Type string `json:"type"`
	Path string `json:"path"`
	// MaxRecords bounds the memory store.
	MaxRecords int `json:"max_records"`
	// Rotation of the jsonl backend, sizes in megabytes.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = TypeMemory
	}
	if c.MaxRecords == 0 {
		c.MaxRecords = 1000
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 7
	}
}

// Validate checks the type and its required path.
func (c Config) Validate() error {
	switch c.Type {
	case TypeNone, TypeMemory:
	case TypeSQLite, TypeJSONL:
		if c.Path == "" {
			return fmt.Errorf("path is required for %s history", c.Type)
		}
	default:
		return fmt.Errorf("unknown history type %q", c.Type)
	}
	return nil
}

// New opens the configured store. It returns nil for TypeNone.
func New(c Config) (corehistory.Store, error) {
	switch c.Type {
	case TypeNone:
		return nil, nil
	case TypeMemory, "":
		return corehistory.NewMemoryStore(c.MaxRecords), nil
	case TypeSQLite:
		s, err := NewSQLiteStore(c.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		return s, nil
	case TypeJSONL:
		s, err := NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		if err != nil {
			return nil, fmt.Errorf("open jsonl history: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history type %q", c.Type)
	}
}
