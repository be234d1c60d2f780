// Package camera derives viewer poses from the tracked vehicle. Derivation is
// pure so every host renders the same shot for the same session state.
package camera

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"parkarena/broker/internal/physics"
)

// Mode selects how the camera follows the vehicle.
type Mode string

const (
	// ModeLocked snaps to a fixed offset behind the vehicle.
	ModeLocked Mode = "locked"
	// ModeChase eases towards the locked offset.
	ModeChase Mode = "chase"
	// ModeCinematic orbits the vehicle on a slowly varying path.
	ModeCinematic Mode = "cinematic"
)

const (
	// DefaultZoomMin bounds how close the camera may come.
	DefaultZoomMin = -3
	// DefaultZoomMax bounds how far the camera may pull back.
	DefaultZoomMax = 15
	// lookDown is the fixed downward tilt of the locked and chase shots.
	lookDown = -20.0
)

// Modes returns the stock cycling order.
func Modes() []Mode {
	return []Mode{ModeLocked, ModeChase, ModeCinematic}
}

// ParseMode validates a mode name.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case ModeLocked, ModeChase, ModeCinematic:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown camera mode %q", raw)
	}
}

// Next returns the mode after current, wrapping at the end of the cycle. A
// current mode missing from the cycle is a programming error and panics.
func Next(cycle []Mode, current Mode) Mode {
	for i, mode := range cycle {
		if mode == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	panic(fmt.Sprintf("camera: mode %q is not in cycle %v", current, cycle))
}

// ClampZoom bounds a zoom step to [min, max].
func ClampZoom(zoom, min, max int) int {
	if zoom < min {
		return min
	}
	if zoom > max {
		return max
	}
	return zoom
}

// Pose is where the camera sits and the point it looks at.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	Target   mgl64.Vec3 `json:"target"`
}

// Input carries everything a derivation reads.
type Input struct {
	Kind     physics.Kind
	Mode     Mode
	Zoom     float64
	Position mgl64.Vec3
	Heading  float64
	// Clock is the simulated session time driving the cinematic orbit.
	Clock float64
	Dt    float64
}

// Derive computes the next camera pose from the previous one.
func Derive(prev Pose, in Input) Pose {
	switch in.Mode {
	case ModeLocked:
		position := anchor(in)
		return Pose{Position: position, Target: position.Add(lookDirection(in))}
	case ModeChase:
		//1.- Ease towards the locked anchor; the blend saturates on long frames.
		position := lerp(prev.Position, anchor(in), math.Min(5*in.Dt, 1))
		return Pose{Position: position, Target: position.Add(lookDirection(in))}
	case ModeCinematic:
		position := lerp(prev.Position, orbit(in), math.Min(2*in.Dt, 1))
		return Pose{Position: position, Target: in.Position.Add(mgl64.Vec3{0, 1, 0})}
	default:
		panic(fmt.Sprintf("camera: unknown mode %q", in.Mode))
	}
}

// anchor is the locked offset relative to the vehicle.
func anchor(in Input) mgl64.Vec3 {
	if in.Kind == physics.KindAir {
		return in.Position.Add(mgl64.Vec3{0, 5 + 0.5*in.Zoom, -15 - in.Zoom})
	}
	back := physics.HeadingForward(in.Heading).Mul(8 + in.Zoom)
	return in.Position.Sub(back).Add(mgl64.Vec3{0, 4 + 0.5*in.Zoom, 0})
}

// lookDirection tilts the view down along the tracked heading; the plane
// shot always faces down the course.
func lookDirection(in Input) mgl64.Vec3 {
	if in.Kind == physics.KindAir {
		return physics.AttitudeForward(0, lookDown)
	}
	return physics.AttitudeForward(in.Heading, lookDown)
}

// orbit is the cinematic waypoint for the current clock.
func orbit(in Input) mgl64.Vec3 {
	t := in.Clock
	var radius, speed, height float64
	if in.Kind == physics.KindAir {
		radius = 18 + in.Zoom + 3*math.Cos(0.8*t)
		speed = 0.2 + 0.05*math.Cos(0.4*t)
		height = 8 + 4*math.Cos(0.5*t)
	} else {
		radius = 10 + in.Zoom + 2*math.Sin(0.7*t)
		speed = 0.25 + 0.05*math.Sin(0.3*t)
		height = 6 + 3*math.Sin(0.6*t)
	}
	angle := t * speed
	return mgl64.Vec3{
		in.Position[0] + radius*math.Cos(angle),
		in.Position[1] + height,
		in.Position[2] + radius*math.Sin(angle),
	}
}

func lerp(from, to mgl64.Vec3, t float64) mgl64.Vec3 {
	return from.Add(to.Sub(from).Mul(t))
}
