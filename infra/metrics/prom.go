// Package metrics holds the Prometheus and InfluxDB implementations of the
// core metrics sinks.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/lastmile/core/metrics"
)

// PromSink records fare and sync activity in Prometheus metrics.
type PromSink struct {
	quotes      *prometheus.CounterVec
	quoteTotal  *prometheus.HistogramVec
	syncState   *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	ingest      *prometheus.CounterVec
	polls       *prometheus.CounterVec
	pollLatency prometheus.Histogram
	merges      *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer. The
// /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// Collectors already registered are reused. A nil registerer defaults to the
// global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.quotes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lastmile_fare_quotes_total",
		Help: "Number of priced trips",
	}, []string{"vehicle_class", "zone", "relay"})); err != nil {
		return nil, err
	}
	if s.quoteTotal, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lastmile_fare_total_units",
		Help:    "Quoted totals in currency units",
		Buckets: prometheus.ExponentialBuckets(500, 2, 8),
	}, []string{"vehicle_class"})); err != nil {
		return nil, err
	}
	if s.syncState, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lastmile_sync_state",
		Help: "Current ingest state, 1 for the active state",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lastmile_sync_transitions_total",
		Help: "Ingest state transitions",
	}, []string{"from", "to"})); err != nil {
		return nil, err
	}
	if s.ingest, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lastmile_ingest_events_total",
		Help: "Activity events received on the live channel",
	}, []string{"event_type", "duplicate"})); err != nil {
		return nil, err
	}
	if s.polls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lastmile_snapshot_polls_total",
		Help: "Snapshot fetches made by the polling fallback",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if s.pollLatency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lastmile_snapshot_poll_seconds",
		Help:    "Snapshot fetch latency",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.merges, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lastmile_order_merges_total",
		Help: "Changes applied to the local order collection",
	}, []string{"source", "legs_guarded"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordFareQuote counts the quote and observes its total.
func (s *PromSink) RecordFareQuote(ev coremetrics.FareQuoteEvent) error {
	class := ev.VehicleClass.String()
	s.quotes.WithLabelValues(class, ev.Zone, strconv.FormatBool(ev.Relay)).Inc()
	s.quoteTotal.WithLabelValues(class).Observe(float64(ev.Total))
	return nil
}

// RecordSyncState moves the state gauge and counts the transition.
func (s *PromSink) RecordSyncState(ev coremetrics.SyncStateEvent) error {
	if ev.From != "" {
		s.syncState.WithLabelValues(ev.From).Set(0)
	}
	s.syncState.WithLabelValues(ev.To).Set(1)
	s.transitions.WithLabelValues(ev.From, ev.To).Inc()
	return nil
}

func (s *PromSink) RecordIngestEvent(ev coremetrics.IngestEvent) error {
	s.ingest.WithLabelValues(ev.EventType, strconv.FormatBool(ev.Duplicate)).Inc()
	return nil
}

func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	result := "ok"
	if !ev.OK {
		result = "error"
	}
	s.polls.WithLabelValues(result).Inc()
	s.pollLatency.Observe(ev.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordMerge(ev coremetrics.MergeEvent) error {
	s.merges.WithLabelValues(ev.Source, strconv.FormatBool(ev.LegsGuarded)).Inc()
	return nil
}
