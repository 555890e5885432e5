package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusAssigned, true},
		{StatusPending, StatusInTransit, true},
		{StatusAssigned, StatusPending, true},
		{StatusInTransit, StatusAssigned, false},
		{StatusPickedUp, StatusPending, false},
		{StatusInTransit, StatusDelivered, true},
		{StatusDelivered, StatusInTransit, false},
		{StatusCancelled, StatusDelivered, false},
		{StatusFailed, StatusFailed, true},
		{StatusAssigned, StatusCancelled, true},
		{"", StatusAssigned, true},
		{StatusPending, "bogus", false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestParseHelpers(t *testing.T) {
	s, err := ParseOrderStatus(" In_Transit ")
	assert.NoError(t, err)
	assert.Equal(t, StatusInTransit, s)
	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)

	c, err := ParseVehicleClass("BIKE")
	assert.NoError(t, err)
	assert.Equal(t, Bike, c)
	_, err = ParseVehicleClass("truck")
	assert.Error(t, err)
}

func TestOrderCloneIsDeep(t *testing.T) {
	o := Order{ID: "o1", RelayLegs: []Leg{{Sequence: 1}}}
	c := o.Clone()
	c.RelayLegs[0].Sequence = 9
	assert.Equal(t, 1, o.RelayLegs[0].Sequence)
}
