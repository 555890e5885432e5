package model

import (
	"fmt"
	"strings"
)

// VehicleClass identifies the vehicle category a fare schedule applies to.
type VehicleClass string

const (
	Bike VehicleClass = "bike"
	Car  VehicleClass = "car"
	Van  VehicleClass = "van"
)

// VehicleClasses lists every supported class in display order.
var VehicleClasses = []VehicleClass{Bike, Car, Van}

// Valid reports whether c is one of the supported classes.
func (c VehicleClass) Valid() bool {
	switch c {
	case Bike, Car, Van:
		return true
	}
	return false
}

func (c VehicleClass) String() string { return string(c) }

// ParseVehicleClass converts a case-insensitive name into a VehicleClass.
func ParseVehicleClass(s string) (VehicleClass, error) {
	c := VehicleClass(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown vehicle class %q", s)
	}
	return c, nil
}
