package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/lastmile/core/metrics"
	"github.com/kilianp07/lastmile/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxSink writes fare and sync events to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A trailing
// /api/v2/write on url is ignored.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings InfluxDB and returns a NopSink when the
// health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFareQuote writes one fare_quote point.
func (s *InfluxSink) RecordFareQuote(ev coremetrics.FareQuoteEvent) error {
	p := write.NewPointWithMeasurement("fare_quote").
		AddTag("vehicle_class", ev.VehicleClass.String()).
		AddTag("zone", ev.Zone).
		AddTag("relay", strconv.FormatBool(ev.Relay)).
		AddField("distance_km", ev.DistanceKm).
		AddField("tier_amount", ev.TierAmount).
		AddField("surge_delta", ev.SurgeDelta).
		AddField("cod_fee", ev.CODFee).
		AddField("total", ev.Total).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSyncState writes an ingest transition.
func (s *InfluxSink) RecordSyncState(ev coremetrics.SyncStateEvent) error {
	p := write.NewPointWithMeasurement("sync_state").
		AddTag("component", ev.Component).
		AddTag("from", ev.From).
		AddTag("to", ev.To).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordPoll writes the outcome of a snapshot fetch.
func (s *InfluxSink) RecordPoll(ev coremetrics.PollEvent) error {
	p := write.NewPointWithMeasurement("snapshot_poll").
		AddTag("ok", strconv.FormatBool(ev.OK)).
		AddField("orders", ev.Orders).
		AddField("latency_ms", float64(ev.Latency.Microseconds())/1000)
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordMerge writes an applied order change.
func (s *InfluxSink) RecordMerge(ev coremetrics.MergeEvent) error {
	p := write.NewPointWithMeasurement("order_merge").
		AddTag("order_id", ev.OrderID).
		AddTag("source", ev.Source).
		AddField("legs_guarded", ev.LegsGuarded).
		AddField("refetch", ev.Refetch).
		SetTime(ev.Time)
	return s.write(p)
}
