package fare

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/metrics"
	"github.com/kilianp07/lastmile/core/model"
)

// TripRequest describes one trip to price.
type TripRequest struct {
	DistanceKm   float64            `json:"distance_km"`
	VehicleClass model.VehicleClass `json:"vehicle_class"`
	Zone         ZoneCrossing       `json:"zone"`
	WeightKg     float64            `json:"weight_kg"`
	COD          bool               `json:"is_cod"`
	CODAmount    int64              `json:"cod_amount"`
	Now          time.Time          `json:"now"`
	Raining      bool               `json:"rain"`
}

// Breakdown is the priced result of a trip. CODFee is a separate ledger line
// and is not part of Total.
type Breakdown struct {
	TierAmount      int64 `json:"tier_amount"`
	ZoneSurcharge   int64 `json:"zone_surcharge"`
	WeightSurcharge int64 `json:"weight_surcharge"`
	CODFee          int64 `json:"cod_fee"`
	SurgeDelta      int64 `json:"surge_delta"`
	Total           int64 `json:"total"`
}

// PriceFields converts the breakdown into the order price representation.
func (b Breakdown) PriceFields(codAmount int64) model.PriceFields {
	return model.PriceFields{
		DeliveryFee: b.Total - b.SurgeDelta,
		SurgeDelta:  b.SurgeDelta,
		CODAmount:   codAmount,
		CODFee:      b.CODFee,
		Total:       b.Total,
	}
}

// Compute prices req against a schedule and the surcharge parameters. It is a
// pure function: the same inputs always produce the same breakdown.
func Compute(s TieredRateSchedule, p SurchargeParams, req TripRequest) (Breakdown, error) {
	if err := validateTrip(req); err != nil {
		return Breakdown{}, err
	}
	zone, err := p.ZoneSurcharge(req.Zone)
	if err != nil {
		return Breakdown{}, err
	}
	if err := checkAmount("distance", req.DistanceKm*s.maxRate()); err != nil {
		return Breakdown{}, err
	}
	if err := checkAmount("weight", p.Weight.units(req.WeightKg)*float64(p.Weight.PerUnitFee)); err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		TierAmount:      s.TierAmount(req.DistanceKm),
		ZoneSurcharge:   zone,
		WeightSurcharge: p.Weight.Amount(req.WeightKg),
	}
	base := b.TierAmount + b.ZoneSurcharge + b.WeightSurcharge
	if m := p.SurgeMultiplier(req.Now, req.Raining); m != 1 {
		if err := checkAmount("surge", float64(base)*m); err != nil {
			return Breakdown{}, err
		}
		b.SurgeDelta = roundUnits(float64(base)*m) - base
	}
	b.Total = base + b.SurgeDelta
	if req.COD {
		if err := checkAmount("cod", float64(req.CODAmount)*(1+p.COD.PercentFee/100)); err != nil {
			return Breakdown{}, err
		}
		b.CODFee = p.COD.Fee(req.CODAmount)
	}
	return b, nil
}

// MaxAmount bounds every priced component in minor units. Products above it
// are rejected instead of being rounded into a wrong total.
const MaxAmount int64 = 1 << 53

func checkAmount(what string, v float64) error {
	if math.IsNaN(v) || math.Abs(v) >= float64(MaxAmount) {
		return fmt.Errorf("%w: %s amount exceeds %d minor units", ErrInvalidInput, what, MaxAmount)
	}
	return nil
}

func validateTrip(req TripRequest) error {
	switch {
	case math.IsNaN(req.DistanceKm) || math.IsInf(req.DistanceKm, 0) || req.DistanceKm <= 0:
		return fmt.Errorf("%w: distance must be positive, got %v", ErrInvalidInput, req.DistanceKm)
	case math.IsNaN(req.WeightKg) || math.IsInf(req.WeightKg, 0) || req.WeightKg < 0:
		return fmt.Errorf("%w: weight must not be negative, got %v", ErrInvalidInput, req.WeightKg)
	case req.COD && req.CODAmount < 0:
		return fmt.Errorf("%w: cod amount must not be negative, got %d", ErrInvalidInput, req.CODAmount)
	}
	return nil
}

// ScheduleReader is the read side of a SettingsStore.
type ScheduleReader interface {
	GetSchedule(class model.VehicleClass) (TieredRateSchedule, error)
	Surcharges() SurchargeParams
}

// Engine prices trips using the current settings of a store.
type Engine struct {
	store   ScheduleReader
	metrics metrics.MetricsSink
	log     logger.Logger
}

// NewEngine creates an Engine. Nil sink and logger default to no-ops.
func NewEngine(store ScheduleReader, sink metrics.MetricsSink, log logger.Logger) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{store: store, metrics: sink, log: log}
}

// Compute prices req with the schedule of its vehicle class. Errors are never
// replaced by a fallback price.
func (e *Engine) Compute(req TripRequest) (Breakdown, error) {
	return e.compute(req, false)
}

// ComputeLeg prices one relay hop. It behaves like Compute but tags the
// recorded quote as a relay leg.
func (e *Engine) ComputeLeg(req TripRequest) (Breakdown, error) {
	return e.compute(req, true)
}

func (e *Engine) compute(req TripRequest, relay bool) (Breakdown, error) {
	if !req.VehicleClass.Valid() {
		return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownVehicleClass, req.VehicleClass)
	}
	sched, err := e.store.GetSchedule(req.VehicleClass)
	if err != nil {
		return Breakdown{}, err
	}
	b, err := Compute(sched, e.store.Surcharges(), req)
	if err != nil {
		return Breakdown{}, err
	}
	e.log.Debugw("fare computed", map[string]any{
		"vehicle_class": req.VehicleClass.String(),
		"distance_km":   req.DistanceKm,
		"total":         b.Total,
		"surge_delta":   b.SurgeDelta,
	})
	zone := req.Zone
	if zone == "" {
		zone = ZoneSame
	}
	if err := e.metrics.RecordFareQuote(metrics.FareQuoteEvent{
		VehicleClass: req.VehicleClass,
		Zone:         string(zone),
		DistanceKm:   req.DistanceKm,
		TierAmount:   b.TierAmount,
		SurgeDelta:   b.SurgeDelta,
		CODFee:       b.CODFee,
		Total:        b.Total,
		Relay:        relay,
		Time:         time.Now(),
	}); err != nil {
		e.log.Warnf("fare quote metrics error: %v", err)
	}
	return b, nil
}
