package fare

import (
	"fmt"
	"math"
	"time"
)

// ZoneCrossing classifies a trip by the regions its endpoints span.
type ZoneCrossing string

const (
	ZoneSame           ZoneCrossing = "same"
	ZoneBridgeCrossing ZoneCrossing = "bridge_crossing"
	ZoneIslandOnly     ZoneCrossing = "island_only"
	ZoneOuterZone      ZoneCrossing = "outer_zone"
)

// Valid reports whether z is a known zone crossing.
func (z ZoneCrossing) Valid() bool {
	switch z {
	case ZoneSame, ZoneBridgeCrossing, ZoneIslandOnly, ZoneOuterZone:
		return true
	}
	return false
}

// WeightSurchargeRule bills every started unit above the threshold.
type WeightSurchargeRule struct {
	ThresholdKg float64 `json:"threshold_kg" yaml:"threshold_kg"`
	UnitKg      float64 `json:"unit_kg" yaml:"unit_kg"`
	PerUnitFee  int64   `json:"per_unit_fee" yaml:"per_unit_fee"`
}

// Amount returns the weight surcharge. Weight exactly at the threshold is free.
func (r WeightSurchargeRule) Amount(weightKg float64) int64 {
	return int64(r.units(weightKg)) * r.PerUnitFee
}

func (r WeightSurchargeRule) units(weightKg float64) float64 {
	if weightKg <= r.ThresholdKg || r.UnitKg <= 0 {
		return 0
	}
	return math.Ceil((weightKg - r.ThresholdKg) / r.UnitKg)
}

// TimeOfDay is a wall clock time encoded as "HH:MM".
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60) }

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func clockOf(now time.Time) TimeOfDay { return NewTimeOfDay(now.Hour(), now.Minute()) }

// SurgeWindow is a daily peak period. End is exclusive and the window may wrap
// past midnight.
type SurgeWindow struct {
	Start      TimeOfDay `json:"start" yaml:"start"`
	End        TimeOfDay `json:"end" yaml:"end"`
	Multiplier float64   `json:"multiplier" yaml:"multiplier"`
}

// Contains reports whether now falls inside the window.
func (w SurgeWindow) Contains(now time.Time) bool {
	c := clockOf(now)
	if w.Start < w.End {
		return c >= w.Start && c < w.End
	}
	return c >= w.Start || c < w.End
}

// RainSurge applies a multiplier while it rains.
type RainSurge struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// CODRule prices the handling of cash collected on delivery.
type CODRule struct {
	FlatFee    int64   `json:"flat_fee" yaml:"flat_fee"`
	PercentFee float64 `json:"percent_fee" yaml:"percent_fee"`
}

// Fee returns the COD handling fee for the collected amount.
func (r CODRule) Fee(codAmount int64) int64 {
	return r.FlatFee + roundUnits(float64(codAmount)*r.PercentFee/100)
}

// SurgePolicy decides how simultaneous surge conditions combine.
type SurgePolicy string

const (
	// SurgeMax applies the largest active multiplier.
	SurgeMax SurgePolicy = "max"
	// SurgeLast applies the last active multiplier, windows in order then rain.
	SurgeLast SurgePolicy = "last"
	// SurgeCompound multiplies every active multiplier together.
	SurgeCompound SurgePolicy = "compound"
)

// Valid reports whether p is a known policy. The empty policy means max.
func (p SurgePolicy) Valid() bool {
	switch p {
	case "", SurgeMax, SurgeLast, SurgeCompound:
		return true
	}
	return false
}

// SurchargeParams are the global parameters shared by every vehicle class.
type SurchargeParams struct {
	Zones        map[ZoneCrossing]int64 `json:"zones" yaml:"zones"`
	Weight       WeightSurchargeRule    `json:"weight" yaml:"weight"`
	SurgeWindows []SurgeWindow          `json:"surge_windows" yaml:"surge_windows"`
	Rain         RainSurge              `json:"rain" yaml:"rain"`
	COD          CODRule                `json:"cod" yaml:"cod"`
	SurgePolicy  SurgePolicy            `json:"surge_policy" yaml:"surge_policy"`
}

// Clone returns a deep copy of the parameters.
func (p SurchargeParams) Clone() SurchargeParams {
	zones := make(map[ZoneCrossing]int64, len(p.Zones))
	for k, v := range p.Zones {
		zones[k] = v
	}
	p.Zones = zones
	p.SurgeWindows = append([]SurgeWindow(nil), p.SurgeWindows...)
	return p
}

// ZoneSurcharge returns the flat amount for z.
func (p SurchargeParams) ZoneSurcharge(z ZoneCrossing) (int64, error) {
	if z == "" {
		z = ZoneSame
	}
	if !z.Valid() {
		return 0, fmt.Errorf("%w: unknown zone crossing %q", ErrInvalidInput, z)
	}
	if z == ZoneSame {
		return 0, nil
	}
	return p.Zones[z], nil
}

// SurgeMultiplier returns the multiplier for the given conditions, 1 when no
// surge applies. A zero now disables the time windows.
func (p SurchargeParams) SurgeMultiplier(now time.Time, raining bool) float64 {
	var active []float64
	if !now.IsZero() {
		for _, w := range p.SurgeWindows {
			if w.Contains(now) {
				active = append(active, w.Multiplier)
			}
		}
	}
	if raining && p.Rain.Enabled {
		active = append(active, p.Rain.Multiplier)
	}
	if len(active) == 0 {
		return 1
	}
	switch p.SurgePolicy {
	case SurgeLast:
		return active[len(active)-1]
	case SurgeCompound:
		m := 1.0
		for _, v := range active {
			m *= v
		}
		return m
	default:
		m := active[0]
		for _, v := range active[1:] {
			m = max(m, v)
		}
		return m
	}
}

// Validate checks the surcharge parameters.
func (p SurchargeParams) Validate() error {
	for z, fee := range p.Zones {
		if !z.Valid() {
			return scheduleErr("surcharges.zones", "unknown zone crossing %q", z)
		}
		if fee < 0 {
			return scheduleErr("surcharges.zones."+string(z), "must not be negative, got %d", fee)
		}
	}
	w := p.Weight
	if !finite(w.ThresholdKg) || w.ThresholdKg < 0 {
		return scheduleErr("surcharges.weight.threshold_kg", "must not be negative, got %v", w.ThresholdKg)
	}
	if !finite(w.UnitKg) || w.UnitKg <= 0 {
		return scheduleErr("surcharges.weight.unit_kg", "must be positive, got %v", w.UnitKg)
	}
	if w.PerUnitFee < 0 {
		return scheduleErr("surcharges.weight.per_unit_fee", "must not be negative, got %d", w.PerUnitFee)
	}
	for i, sw := range p.SurgeWindows {
		field := fmt.Sprintf("surcharges.surge_windows[%d]", i)
		if sw.Start == sw.End {
			return scheduleErr(field, "start and end must differ")
		}
		if sw.Start < 0 || sw.End < 0 || sw.Start >= 24*60 || sw.End >= 24*60 {
			return scheduleErr(field, "time of day out of range")
		}
		if !finite(sw.Multiplier) || sw.Multiplier < 1 {
			return scheduleErr(field+".multiplier", "must be at least 1, got %v", sw.Multiplier)
		}
	}
	if p.Rain.Enabled && (!finite(p.Rain.Multiplier) || p.Rain.Multiplier < 1) {
		return scheduleErr("surcharges.rain.multiplier", "must be at least 1, got %v", p.Rain.Multiplier)
	}
	if p.COD.FlatFee < 0 {
		return scheduleErr("surcharges.cod.flat_fee", "must not be negative, got %d", p.COD.FlatFee)
	}
	if !finite(p.COD.PercentFee) || p.COD.PercentFee < 0 || p.COD.PercentFee > 100 {
		return scheduleErr("surcharges.cod.percent_fee", "must be within 0..100, got %v", p.COD.PercentFee)
	}
	if !p.SurgePolicy.Valid() {
		return scheduleErr("surcharges.surge_policy", "unknown policy %q", p.SurgePolicy)
	}
	return nil
}
