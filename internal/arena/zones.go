package arena

import (
	"math"

	"parkarena/broker/internal/collision"
	"parkarena/broker/internal/physics"
)

// ParkingZone is the target bay for the car.
type ParkingZone struct {
	Box       collision.Box `json:"box"`
	Heading   float64       `json:"heading"`
	Tolerance float64       `json:"tolerance"`
}

// Accepts reports whether a car collider sits in the bay facing the canonical heading.
func (z ParkingZone) Accepts(collider collision.Box, heading float64) bool {
	if !z.Box.Overlaps(collider) {
		return false
	}
	//1.- Compare along the shortest arc so 355 and 5 are both 5 degrees off 0.
	return math.Abs(physics.AngleDelta(z.Heading, heading)) < z.Tolerance
}

// LandingVerdict classifies a plane relative to the landing pad.
type LandingVerdict int

const (
	// LandingNone means the plane is not over the pad.
	LandingNone LandingVerdict = iota
	// LandingTooFast means the plane overlaps the pad but is too fast or too high.
	LandingTooFast
	// Landed means the plane is on the pad within tolerances.
	Landed
)

// LandingZone is the target pad for the plane.
type LandingZone struct {
	Box         collision.Box `json:"box"`
	MaxSpeed    float64       `json:"max_speed"`
	MaxAltitude float64       `json:"max_altitude"`
}

// Evaluate grades an approach over the pad.
func (z LandingZone) Evaluate(collider collision.Box, speed, altitude float64) LandingVerdict {
	if !z.Box.Overlaps(collider) {
		return LandingNone
	}
	if speed < z.MaxSpeed && altitude < z.MaxAltitude {
		return Landed
	}
	return LandingTooFast
}
