// Package events defines the notifications published on the event bus.
//
// Available event types:
//   - OrderUpdated: the reconciler applied a change to an order
//   - SyncStateChanged: the real-time ingest moved to a new state
package events
