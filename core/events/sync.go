package events

import "time"

// SyncStateChanged is published on every ingest state transition.
type SyncStateChanged struct {
	From   string
	To     string
	Reason string
	Time   time.Time
}
