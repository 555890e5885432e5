package config

import (
	"fmt"

	"github.com/kilianp07/lastmile/core/fare"
)

// FareConfig points at the settings file holding schedules and surcharges.
type FareConfig struct {
	SettingsFile string `json:"settings_file"`
	Autosave     bool   `json:"autosave"`
	// SurgePolicy overrides the policy stored in the settings file when set.
	SurgePolicy string `json:"surge_policy"`
}

// SetDefaults applies sane defaults.
func (c *FareConfig) SetDefaults() {
	if c.SettingsFile == "" {
		c.SettingsFile = "fare.yaml"
	}
}

// Validate checks the surge policy name.
func (c FareConfig) Validate() error {
	if c.SurgePolicy != "" && !fare.SurgePolicy(c.SurgePolicy).Valid() {
		return fmt.Errorf("unknown surge_policy %q", c.SurgePolicy)
	}
	return nil
}
