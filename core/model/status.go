package model

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order.
//
//	pending ──> assigned ──> picked_up ──> in_transit ──> delivered
//	   ^           │
//	   └───────────┘ (unassigned)
//
// Any non-terminal state may move to cancelled or failed. Delivered, cancelled
// and failed are absorbing.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAssigned  OrderStatus = "assigned"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusInTransit OrderStatus = "in_transit"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
	StatusFailed    OrderStatus = "failed"
)

var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusAssigned:  1,
	StatusPickedUp:  2,
	StatusInTransit: 3,
	StatusDelivered: 4,
	StatusCancelled: 4,
	StatusFailed:    4,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is absorbing.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

func (s OrderStatus) String() string { return string(s) }

// CanTransition reports whether the lifecycle allows moving from s to next.
// Self transitions are always allowed so that replays stay idempotent.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if !s.Valid() {
		// An order without a known status accepts whatever the backend reports.
		return true
	}
	if s.Terminal() {
		return false
	}
	if s == StatusAssigned && next == StatusPending {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// ParseOrderStatus converts a case-insensitive name into an OrderStatus.
func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", v)
	}
	return s, nil
}
