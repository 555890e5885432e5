// Package reconcile keeps the dispatcher's local order collection consistent
// with the activity stream and periodic snapshots.
package reconcile

import (
	"time"

	"github.com/kilianp07/lastmile/core/model"
)

// Patch is a partial update to an order. Nil fields are not provided.
type Patch struct {
	Status  *model.OrderStatus
	RiderID *string
	Price   *model.PriceFields
	// Legs is only applied when SetLegs is true.
	Legs      []model.Leg
	SetLegs   bool
	UpdatedAt time.Time
}

// Outcome describes what a merge did to the current order.
type Outcome struct {
	Stale          bool
	Changed        bool
	StatusRejected bool
	LegsGuarded    bool
}

// Merge applies p to current and returns the merged order. It is a pure
// function; applying the same patch twice yields the same order.
func Merge(p Patch, current model.Order) model.Order {
	next, _ := apply(p, current)
	return next
}

func apply(p Patch, current model.Order) (model.Order, Outcome) {
	var out Outcome
	if !p.UpdatedAt.IsZero() && p.UpdatedAt.Before(current.UpdatedAt) {
		out.Stale = true
		return current.Clone(), out
	}
	next := current.Clone()

	if p.Status != nil && *p.Status != next.Status {
		if next.Status.CanTransition(*p.Status) {
			next.Status = *p.Status
			out.Changed = true
		} else {
			out.StatusRejected = true
		}
	}
	// the rider moves with its status; a rejected transition keeps the rider
	if p.RiderID != nil && !out.StatusRejected && *p.RiderID != next.RiderID {
		next.RiderID = *p.RiderID
		out.Changed = true
	}
	if p.Price != nil && *p.Price != next.Price {
		next.Price = *p.Price
		out.Changed = true
	}
	if p.SetLegs {
		switch {
		case len(p.Legs) == 0 && len(next.RelayLegs) > 0:
			out.LegsGuarded = true
		case !legsEqual(p.Legs, next.RelayLegs):
			next.RelayLegs = cloneLegs(p.Legs)
			out.Changed = true
		}
	}
	if p.UpdatedAt.After(next.UpdatedAt) {
		next.UpdatedAt = p.UpdatedAt
		out.Changed = true
	}
	return next, out
}

// PatchFromOrder turns a snapshot order into a patch with every field set.
func PatchFromOrder(o model.Order) Patch {
	status := o.Status
	rider := o.RiderID
	price := o.Price
	return Patch{
		Status:    &status,
		RiderID:   &rider,
		Price:     &price,
		Legs:      cloneLegs(o.RelayLegs),
		SetLegs:   true,
		UpdatedAt: o.UpdatedAt,
	}
}

var eventStatus = map[string]model.OrderStatus{
	model.EventDelivered:  model.StatusDelivered,
	model.EventCancelled:  model.StatusCancelled,
	model.EventInTransit:  model.StatusInTransit,
	model.EventPickedUp:   model.StatusPickedUp,
	model.EventAssigned:   model.StatusAssigned,
	model.EventUnassigned: model.StatusPending,
	model.EventFailed:     model.StatusFailed,
}

// StatusForEvent returns the status an event type maps to.
func StatusForEvent(eventType string) (model.OrderStatus, bool) {
	s, ok := eventStatus[eventType]
	return s, ok
}

// PatchFromEvent builds the patch an activity event implies. The boolean is
// false for event types that carry no status change.
func PatchFromEvent(ev model.ActivityEvent) (Patch, bool) {
	status, ok := eventStatus[ev.Type]
	if !ok {
		return Patch{UpdatedAt: ev.Timestamp}, false
	}
	p := Patch{Status: &status, UpdatedAt: ev.Timestamp}
	switch ev.Type {
	case model.EventAssigned:
		if rider, ok := ev.MetaString("rider_id"); ok && rider != "" {
			p.RiderID = &rider
		}
	case model.EventUnassigned:
		none := ""
		p.RiderID = &none
	}
	return p, true
}

func cloneLegs(legs []model.Leg) []model.Leg {
	if len(legs) == 0 {
		return nil
	}
	out := make([]model.Leg, len(legs))
	copy(out, legs)
	return out
}

func legsEqual(a, b []model.Leg) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
