package model

import "time"

// Event types found on the activity stream.
const (
	EventNewOrder   = "new_order"
	EventAssigned   = "assigned"
	EventUnassigned = "unassigned"
	EventPickedUp   = "picked_up"
	EventInTransit  = "in_transit"
	EventDelivered  = "delivered"
	EventCancelled  = "cancelled"
	EventFailed     = "failed"
)

// ActivityEvent is an append-only notification about an order. Delivery is at
// least once, so consumers must tolerate duplicates.
type ActivityEvent struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MetaString returns the string metadata value stored under key.
func (e ActivityEvent) MetaString(key string) (string, bool) {
	v, ok := e.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
