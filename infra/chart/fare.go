// Package chart renders fare schedules as HTML line charts.
package chart

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/lastmile/core/fare"
	"github.com/kilianp07/lastmile/core/model"
)

// FareCurveHTML plots the distance component of every class schedule from
// stepKm to maxKm.
func FareCurveHTML(s fare.Settings, maxKm, stepKm float64) (string, error) {
	if stepKm <= 0 || maxKm < stepKm {
		return "", fmt.Errorf("invalid range: max %v step %v", maxKm, stepKm)
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Fare by distance"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "km"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "units"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	var xAxis []string
	for d := stepKm; d <= maxKm+1e-9; d += stepKm {
		xAxis = append(xAxis, strconv.FormatFloat(d, 'f', -1, 64))
	}
	line.SetXAxis(xAxis)

	for _, class := range model.VehicleClasses {
		sched, ok := s.Schedules[class]
		if !ok {
			continue
		}
		data := make([]opts.LineData, 0, len(xAxis))
		for i := range xAxis {
			d := stepKm * float64(i+1)
			data = append(data, opts.LineData{Value: sched.TierAmount(d)})
		}
		line.AddSeries(class.String(), data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %v", err)
	}
	return buf.String(), nil
}
