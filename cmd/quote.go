package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lastmile/core/fare"
	"github.com/kilianp07/lastmile/core/model"
	"github.com/kilianp07/lastmile/infra/settings"
)

var settingsPath string

var quoteOpts struct {
	class     string
	distance  float64
	zone      string
	weight    float64
	codAmount int64
	rain      bool
	at        string
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price one trip with the settings file",
	RunE:  runQuote,
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&settingsPath, "settings", "fare.yaml", "fare settings file")
	f.StringVar(&quoteOpts.class, "class", "bike", "vehicle class (bike, car, van)")
	f.Float64Var(&quoteOpts.distance, "distance", 0, "trip distance in km")
	f.StringVar(&quoteOpts.zone, "zone", string(fare.ZoneSame), "zone crossing")
	f.Float64Var(&quoteOpts.weight, "weight", 0, "package weight in kg")
	f.Int64Var(&quoteOpts.codAmount, "cod", 0, "cash to collect on delivery, 0 for none")
	f.BoolVar(&quoteOpts.rain, "rain", false, "apply the rain surge")
	f.StringVar(&quoteOpts.at, "at", "", "pickup time in RFC3339, defaults to now")
	rootCmd.AddCommand(quoteCmd)
}

func loadEngine(path string) (*fare.Engine, error) {
	store, err := settings.Load(path, false, nil)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return fare.NewEngine(store, nil, nil), nil
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine(settingsPath)
	if err != nil {
		return err
	}
	class, err := model.ParseVehicleClass(quoteOpts.class)
	if err != nil {
		return err
	}
	at, err := parseAt(quoteOpts.at)
	if err != nil {
		return err
	}
	b, err := engine.Compute(fare.TripRequest{
		DistanceKm:   quoteOpts.distance,
		VehicleClass: class,
		Zone:         fare.ZoneCrossing(quoteOpts.zone),
		WeightKg:     quoteOpts.weight,
		COD:          quoteOpts.codAmount > 0,
		CODAmount:    quoteOpts.codAmount,
		Now:          at,
		Raining:      quoteOpts.rain,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}
