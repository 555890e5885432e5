package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/lastmile/core/model"
)

// WireEvent is the JSON shape of an activity event on the live channel.
type WireEvent struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	EventType string          `json:"event_type"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// DecodeEvent parses one wire message. The timestamp may be an RFC 3339
// string, unix seconds or unix milliseconds; it is optional.
func DecodeEvent(data []byte) (model.ActivityEvent, error) {
	var w WireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return model.ActivityEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if w.OrderID == "" || w.EventType == "" {
		return model.ActivityEvent{}, fmt.Errorf("%w: order_id and event_type are required", ErrMalformedEvent)
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return model.ActivityEvent{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedEvent, err)
	}
	return model.ActivityEvent{
		ID:        w.ID,
		OrderID:   w.OrderID,
		Type:      strings.ToLower(w.EventType),
		Timestamp: ts,
		Metadata:  w.Metadata,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, err
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	sec := int64(n)
	return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), nil
}
