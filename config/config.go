// Package config loads the service configuration from a YAML or JSON file
// with K_ prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/lastmile/core/metrics"
	"github.com/kilianp07/lastmile/infra/history"
	"github.com/kilianp07/lastmile/infra/monitoring"
)

type Config struct {
	Live    LiveConfig     `json:"live"`
	Sync    SyncConfig     `json:"sync"`
	Fare    FareConfig     `json:"fare"`
	Metrics metrics.Config `json:"metrics"`
	HTTP    HTTPConfig     `json:"http"`
	Logging LoggingConfig  `json:"logging"`
	History history.Config `json:"history"`

	Sentry monitoring.SentryConfig `json:"sentry"`
}

// Load reads path, applies environment overrides such as
// K_SYNC__POLL_INTERVAL_SECONDS=5, then defaults and validation. An empty
// path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Live.SetDefaults()
	c.Sync.SetDefaults()
	c.Fare.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
	c.History.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"live", c.Live},
		{"sync", c.Sync},
		{"fare", c.Fare},
		{"http", c.HTTP},
		{"logging", c.Logging},
		{"history", c.History},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
