package events

import "github.com/kilianp07/lastmile/core/model"

// OrderUpdated is published after the reconciler changes an order.
// Source is "event", "snapshot" or "legs".
type OrderUpdated struct {
	Order       model.Order `json:"order"`
	Source      string      `json:"source"`
	EventType   string      `json:"event_type,omitempty"`
	LegsGuarded bool        `json:"legs_guarded,omitempty"`
}
