// Package relay prices multi-hop deliveries. The hop list comes from an
// external routing service; this package only aggregates costs over it.
package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/lastmile/core/fare"
	"github.com/kilianp07/lastmile/core/model"
)

// ErrNoHops is returned for an empty hop list.
var ErrNoHops = fmt.Errorf("%w: relay requires at least one hop", fare.ErrInvalidInput)

// Hop is one segment of a relay route.
type Hop struct {
	StartNode   string  `json:"start_node"`
	EndNode     string  `json:"end_node"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// Request describes a relay order to price.
type Request struct {
	VehicleClass model.VehicleClass `json:"vehicle_class"`
	WeightKg     float64            `json:"weight_kg"`
	Hops         []Hop              `json:"hops"`
	Now          time.Time          `json:"now"`
	Raining      bool               `json:"rain"`
}

// Plan is the priced leg set of a relay order.
type Plan struct {
	Legs        []model.Leg `json:"legs"`
	TotalPayout int64       `json:"total_payout"`
}

// Apply returns a copy of o carrying the plan's legs.
func (p Plan) Apply(o model.Order) model.Order {
	out := o.Clone()
	out.RelayLegs = append([]model.Leg(nil), p.Legs...)
	return out
}

// Pricer prices a single hop.
type Pricer interface {
	ComputeLeg(req fare.TripRequest) (fare.Breakdown, error)
}

// Aggregator prices every hop of a relay order.
type Aggregator struct {
	pricer Pricer
}

// NewAggregator returns an Aggregator using p for each hop.
func NewAggregator(p Pricer) *Aggregator { return &Aggregator{pricer: p} }

// Price numbers the hops 1..N in input order and prices each one in the same
// zone. The package weight is billed on the first leg only. Any hop error
// fails the whole plan.
func (a *Aggregator) Price(req Request) (Plan, error) {
	if len(req.Hops) == 0 {
		return Plan{}, ErrNoHops
	}
	plan := Plan{Legs: make([]model.Leg, 0, len(req.Hops))}
	for i, h := range req.Hops {
		weight := 0.0
		if i == 0 {
			weight = req.WeightKg
		}
		b, err := a.pricer.ComputeLeg(fare.TripRequest{
			DistanceKm:   h.DistanceKm,
			VehicleClass: req.VehicleClass,
			Zone:         fare.ZoneSame,
			WeightKg:     weight,
			Now:          req.Now,
			Raining:      req.Raining,
		})
		if err != nil {
			return Plan{}, fmt.Errorf("leg %d: %w", i+1, err)
		}
		plan.Legs = append(plan.Legs, model.Leg{
			Sequence:    i + 1,
			StartNode:   h.StartNode,
			EndNode:     h.EndNode,
			DistanceKm:  h.DistanceKm,
			DurationMin: h.DurationMin,
			RiderPayout: b.Total,
			Status:      model.LegPending,
		})
		plan.TotalPayout += b.Total
	}
	return plan, nil
}

// IsPricingError reports whether err came from the fare engine rather than the
// hop list itself.
func IsPricingError(err error) bool {
	return errors.Is(err, fare.ErrInvalidInput) || errors.Is(err, fare.ErrUnknownVehicleClass)
}
