package model

import "time"

// LegStatus tracks the progress of a single relay hop.
type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegActive    LegStatus = "active"
	LegCompleted LegStatus = "completed"
)

// Leg is one hop of a relay delivery, priced and paid out on its own.
type Leg struct {
	Sequence    int       `json:"sequence_number"`
	StartNode   string    `json:"start_node"`
	EndNode     string    `json:"end_node"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_min"`
	RiderPayout int64     `json:"rider_payout"`
	Status      LegStatus `json:"status"`
}

// PriceFields carries the price relevant values of an order.
type PriceFields struct {
	DeliveryFee int64 `json:"delivery_fee"`
	SurgeDelta  int64 `json:"surge_delta"`
	CODAmount   int64 `json:"cod_amount"`
	CODFee      int64 `json:"cod_fee"`
	Total       int64 `json:"total"`
}

// Order is the dispatcher's view of a delivery.
type Order struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	RiderID   string      `json:"rider_id,omitempty"`
	Price     PriceFields `json:"price"`
	RelayLegs []Leg       `json:"relay_legs,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	if o.RelayLegs != nil {
		legs := make([]Leg, len(o.RelayLegs))
		copy(legs, o.RelayLegs)
		o.RelayLegs = legs
	}
	return o
}
