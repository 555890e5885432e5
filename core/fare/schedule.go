package fare

import (
	"fmt"
	"math"
)

// Tier is one distance band of a schedule. A zero or infinite MaxDistanceKm
// marks the open-ended last tier.
type Tier struct {
	MaxDistanceKm float64 `json:"max_distance_km,omitempty" yaml:"max_distance_km,omitempty"`
	RatePerKm     float64 `json:"rate_per_km" yaml:"rate_per_km"`
}

// Unbounded reports whether the tier covers every distance above its start.
func (t Tier) Unbounded() bool {
	return t.MaxDistanceKm == 0 || math.IsInf(t.MaxDistanceKm, 1)
}

// TieredRateSchedule prices distance for one vehicle class.
type TieredRateSchedule struct {
	FloorDistanceKm float64 `json:"floor_distance_km" yaml:"floor_distance_km"`
	FloorFee        int64   `json:"floor_fee" yaml:"floor_fee"`
	Tiers           []Tier  `json:"tiers" yaml:"tiers"`
}

// Clone returns a copy that does not share the tier slice.
func (s TieredRateSchedule) Clone() TieredRateSchedule {
	s.Tiers = append([]Tier(nil), s.Tiers...)
	return s
}

// normalized stores an infinite last bound as zero so the schedule stays
// encodable as JSON.
func (s TieredRateSchedule) normalized() TieredRateSchedule {
	s = s.Clone()
	for i := range s.Tiers {
		if math.IsInf(s.Tiers[i].MaxDistanceKm, 1) {
			s.Tiers[i].MaxDistanceKm = 0
		}
	}
	return s
}

// Validate checks the schedule invariants. Besides ordering and positivity it
// requires boundary amounts to be non-decreasing, which keeps the price
// monotonic in distance.
func (s TieredRateSchedule) Validate() error {
	if !finite(s.FloorDistanceKm) || s.FloorDistanceKm <= 0 {
		return scheduleErr("floor_distance_km", "must be positive, got %v", s.FloorDistanceKm)
	}
	if s.FloorFee <= 0 {
		return scheduleErr("floor_fee", "must be positive, got %d", s.FloorFee)
	}
	if len(s.Tiers) == 0 {
		return scheduleErr("tiers", "at least one tier is required")
	}
	last := len(s.Tiers) - 1
	prevBound := s.FloorDistanceKm
	prevAmount := s.FloorFee
	for i, t := range s.Tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		if !finite(t.RatePerKm) || t.RatePerKm <= 0 {
			return scheduleErr(field+".rate_per_km", "must be positive, got %v", t.RatePerKm)
		}
		if math.IsNaN(t.MaxDistanceKm) || t.MaxDistanceKm < 0 {
			return scheduleErr(field+".max_distance_km", "must not be negative, got %v", t.MaxDistanceKm)
		}
		if i == last {
			if !t.Unbounded() {
				return scheduleErr(field+".max_distance_km", "last tier must be unbounded")
			}
			continue
		}
		if t.Unbounded() {
			return scheduleErr(field+".max_distance_km", "only the last tier may be unbounded")
		}
		if t.MaxDistanceKm <= prevBound {
			return scheduleErr(field+".max_distance_km", "must exceed %v, got %v", prevBound, t.MaxDistanceKm)
		}
		if t.MaxDistanceKm*t.RatePerKm >= float64(MaxAmount) {
			return scheduleErr(field+".max_distance_km", "boundary amount exceeds %d", MaxAmount)
		}
		amount := roundUnits(t.MaxDistanceKm * t.RatePerKm)
		if amount < prevAmount {
			return scheduleErr(field, "boundary amount %d below previous boundary %d", amount, prevAmount)
		}
		prevBound, prevAmount = t.MaxDistanceKm, amount
	}
	return nil
}

// TierAmount returns the distance component of the fare. Distances up to the
// floor pay the floor fee; above it the first tier whose bound covers the
// distance applies its rate, never dropping below the previous boundary amount.
// A distance equal to a bound belongs to the lower tier.
func (s TieredRateSchedule) TierAmount(distanceKm float64) int64 {
	if distanceKm <= s.FloorDistanceKm {
		return s.FloorFee
	}
	prev := s.FloorFee
	for _, t := range s.Tiers {
		if t.Unbounded() || distanceKm <= t.MaxDistanceKm {
			return max(roundUnits(distanceKm*t.RatePerKm), prev)
		}
		prev = roundUnits(t.MaxDistanceKm * t.RatePerKm)
	}
	return prev
}

func (s TieredRateSchedule) maxRate() float64 {
	var m float64
	for _, t := range s.Tiers {
		m = max(m, t.RatePerKm)
	}
	return m
}

func roundUnits(v float64) int64 { return int64(math.Round(v)) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
