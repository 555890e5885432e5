package fare

import "github.com/kilianp07/lastmile/core/model"

// Defaults returns the reference settings used when no settings file exists.
func Defaults() Settings {
	return Settings{
		Schedules: map[model.VehicleClass]TieredRateSchedule{
			model.Bike: {
				FloorDistanceKm: 6,
				FloorFee:        1700,
				Tiers: []Tier{
					{MaxDistanceKm: 10, RatePerKm: 275},
					{MaxDistanceKm: 15, RatePerKm: 235},
					{RatePerKm: 200},
				},
			},
			model.Car: {
				FloorDistanceKm: 5,
				FloorFee:        4500,
				Tiers: []Tier{
					{MaxDistanceKm: 12, RatePerKm: 600},
					{MaxDistanceKm: 25, RatePerKm: 520},
					{RatePerKm: 450},
				},
			},
			model.Van: {
				FloorDistanceKm: 5,
				FloorFee:        8000,
				Tiers: []Tier{
					{MaxDistanceKm: 15, RatePerKm: 900},
					{MaxDistanceKm: 30, RatePerKm: 780},
					{RatePerKm: 700},
				},
			},
		},
		Surcharges: SurchargeParams{
			Zones: map[ZoneCrossing]int64{
				ZoneSame:           0,
				ZoneBridgeCrossing: 500,
				ZoneIslandOnly:     300,
				ZoneOuterZone:      800,
			},
			Weight: WeightSurchargeRule{ThresholdKg: 5, UnitKg: 1, PerUnitFee: 100},
			SurgeWindows: []SurgeWindow{
				{Start: NewTimeOfDay(7, 0), End: NewTimeOfDay(10, 0), Multiplier: 1.2},
				{Start: NewTimeOfDay(17, 0), End: NewTimeOfDay(20, 0), Multiplier: 1.25},
			},
			Rain:        RainSurge{Enabled: true, Multiplier: 1.3},
			COD:         CODRule{FlatFee: 100, PercentFee: 1},
			SurgePolicy: SurgeMax,
		},
	}
}
