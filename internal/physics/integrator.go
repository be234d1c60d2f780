package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// clampMagnitude rescales vector so its length does not exceed limit.
func clampMagnitude(vector mgl64.Vec3, limit float64) mgl64.Vec3 {
	//1.- Skip clamping when the limit disables the guard.
	if !(limit > 0) {
		return vector
	}
	lengthSq := vector.Dot(vector)
	if lengthSq == 0 || lengthSq <= limit*limit {
		return vector
	}
	//2.- Scale each axis uniformly so the resulting magnitude matches the limit.
	return vector.Mul(limit / math.Sqrt(lengthSq))
}

// decay removes a clamped fraction of the vector; rate*dt never exceeds one
// so a single step cannot push the vector past zero.
func decay(vector mgl64.Vec3, rate, dt float64) mgl64.Vec3 {
	factor := math.Min(rate*dt, 1)
	if factor <= 0 {
		return vector
	}
	return vector.Sub(vector.Mul(factor))
}

// WrapHeading normalizes an angle in degrees to [0, 360).
func WrapHeading(angle float64) float64 {
	//1.- math.Mod keeps values bounded across many integration steps.
	wrapped := math.Mod(angle, 360.0)
	if wrapped < 0 {
		wrapped += 360.0
	}
	//2.- Tiny negative inputs can round up to exactly 360 after the shift.
	if wrapped >= 360.0 {
		wrapped = 0
	}
	return wrapped
}

// wrapSigned normalizes an angle in degrees to [-180, 180).
func wrapSigned(angle float64) float64 {
	wrapped := math.Mod(angle+180.0, 360.0)
	if wrapped < 0 {
		wrapped += 360.0
	}
	return wrapped - 180.0
}

// AngleDelta returns the shortest signed rotation from a to b in degrees.
func AngleDelta(a, b float64) float64 {
	return wrapSigned(b - a)
}

// LerpAngle interpolates between two headings along the shortest arc.
func LerpAngle(from, to, t float64) float64 {
	t = mgl64.Clamp(t, 0, 1)
	return WrapHeading(from + AngleDelta(from, to)*t)
}

// HeadingForward returns the horizontal unit vector for a heading; 0 faces +z
// and positive headings turn towards +x.
func HeadingForward(heading float64) mgl64.Vec3 {
	rad := mgl64.DegToRad(heading)
	return mgl64.Vec3{math.Sin(rad), 0, math.Cos(rad)}
}

// AttitudeForward returns the unit nose vector for a yaw and pitch; positive pitch raises the nose.
func AttitudeForward(yaw, pitch float64) mgl64.Vec3 {
	y := mgl64.DegToRad(yaw)
	p := mgl64.DegToRad(pitch)
	return mgl64.Vec3{math.Sin(y) * math.Cos(p), math.Sin(p), math.Cos(y) * math.Cos(p)}
}

func axis(positive, negative bool) float64 {
	switch {
	case positive && !negative:
		return 1
	case negative && !positive:
		return -1
	default:
		return 0
	}
}
