package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lastmile/infra/chart"
	"github.com/kilianp07/lastmile/infra/settings"
)

var chartOpts struct {
	out    string
	maxKm  float64
	stepKm float64
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the fare schedules as an HTML chart",
	RunE:  runChart,
}

func init() {
	f := chartCmd.Flags()
	f.StringVar(&settingsPath, "settings", "fare.yaml", "fare settings file")
	f.StringVarP(&chartOpts.out, "out", "o", "fare.html", "output file, - for stdout")
	f.Float64Var(&chartOpts.maxKm, "max-km", 40, "largest distance plotted")
	f.Float64Var(&chartOpts.stepKm, "step-km", 1, "distance step")
	rootCmd.AddCommand(chartCmd)
}

func runChart(cmd *cobra.Command, args []string) error {
	store, err := settings.Load(settingsPath, false, nil)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	html, err := chart.FareCurveHTML(store.Settings(), chartOpts.maxKm, chartOpts.stepKm)
	if err != nil {
		return err
	}
	if chartOpts.out == "-" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), html)
		return err
	}
	return os.WriteFile(chartOpts.out, []byte(html), 0o644)
}
