package metrics

import (
	"time"

	"github.com/kilianp07/lastmile/core/model"
)

// MetricsSink is the base interface every sink implements. Optional
// capabilities are discovered through the recorder interfaces below.
type MetricsSink interface {
	RecordFareQuote(ev FareQuoteEvent) error
}

// FareQuoteEvent describes one priced trip.
type FareQuoteEvent struct {
	VehicleClass model.VehicleClass
	Zone         string
	DistanceKm   float64
	TierAmount   int64
	SurgeDelta   int64
	CODFee       int64
	Total        int64
	Relay        bool
	Time         time.Time
}

// SyncStateEvent records a transition of the real-time ingest.
type SyncStateEvent struct {
	From      string
	To        string
	Reason    string
	Component string
	Time      time.Time
}

// SyncStateRecorder records ingest state changes.
type SyncStateRecorder interface {
	RecordSyncState(ev SyncStateEvent) error
}

// IngestEvent counts an inbound activity event.
type IngestEvent struct {
	EventType string
	Duplicate bool
	Source    string
	Time      time.Time
}

// IngestRecorder records inbound events, including dropped duplicates.
type IngestRecorder interface {
	RecordIngestEvent(ev IngestEvent) error
}

// PollEvent captures the outcome of one snapshot fetch.
type PollEvent struct {
	OK      bool
	Orders  int
	Latency time.Duration
	Error   string
	Time    time.Time
}

// PollRecorder records polling fallback fetches.
type PollRecorder interface {
	RecordPoll(ev PollEvent) error
}

// MergeEvent records an applied reconciler change.
type MergeEvent struct {
	OrderID     string
	Source      string
	LegsGuarded bool
	Refetch     bool
	Time        time.Time
}

// MergeRecorder records reconciler activity.
type MergeRecorder interface {
	RecordMerge(ev MergeEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordFareQuote(FareQuoteEvent) error { return nil }
func (NopSink) RecordSyncState(SyncStateEvent) error { return nil }
func (NopSink) RecordIngestEvent(IngestEvent) error  { return nil }
func (NopSink) RecordPoll(PollEvent) error           { return nil }
func (NopSink) RecordMerge(MergeEvent) error         { return nil }
