package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SignedDistanceField exposes the sampling contract for distance queries.
type SignedDistanceField interface {
	Sample(point mgl64.Vec3) float64
}

// SampleFunc adapts a function into a SignedDistanceField.
type SampleFunc func(mgl64.Vec3) float64

// Sample invokes the wrapped sampling function.
func (s SampleFunc) Sample(point mgl64.Vec3) float64 {
	return s(point)
}

// SphereField is the analytic distance to a sphere surface.
type SphereField struct {
	Center mgl64.Vec3
	Radius float64
}

// Sample calculates the signed distance from a point to the sphere surface.
func (s SphereField) Sample(point mgl64.Vec3) float64 {
	//1.- The radius is subtracted from the distance between the point and center.
	return point.Sub(s.Center).Len() - s.Radius
}

// BoxField is the exact distance to an axis-aligned box.
type BoxField struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
}

// Sample returns the signed distance from the box surface; negative inside.
func (b BoxField) Sample(point mgl64.Vec3) float64 {
	//1.- Fold the point into the positive octant relative to the box centre.
	d := point.Sub(b.Center)
	q := mgl64.Vec3{
		math.Abs(d[0]) - b.HalfExtents[0],
		math.Abs(d[1]) - b.HalfExtents[1],
		math.Abs(d[2]) - b.HalfExtents[2],
	}
	//2.- Outside distance uses only the positive components; inside uses the largest.
	outside := mgl64.Vec3{math.Max(q[0], 0), math.Max(q[1], 0), math.Max(q[2], 0)}.Len()
	inside := math.Min(math.Max(q[0], math.Max(q[1], q[2])), 0)
	return outside + inside
}

// UnionField samples the nearest of several fields.
type UnionField []SignedDistanceField

// Sample returns the minimum distance across all members; +Inf when empty.
func (u UnionField) Sample(point mgl64.Vec3) float64 {
	nearest := math.Inf(1)
	for _, field := range u {
		if d := field.Sample(point); d < nearest {
			nearest = d
		}
	}
	return nearest
}

// Raycast performs sphere tracing against the provided field.
func Raycast(field SignedDistanceField, origin, direction mgl64.Vec3, maxDistance float64, maxSteps int, epsilon float64) (bool, float64, mgl64.Vec3) {
	//1.- Degenerate directions cannot march; report a miss at the origin.
	if direction.Len() == 0 {
		return false, 0, origin
	}
	dir := direction.Normalize()
	distance := 0.0
	current := origin
	for step := 0; step < maxSteps; step++ {
		sample := field.Sample(current)
		if sample < epsilon {
			//2.- Return a hit once the sampled distance is within tolerance.
			return true, distance, current
		}
		distance += sample
		if distance > maxDistance {
			break
		}
		//3.- Advance the ray origin using the sampled distance.
		current = origin.Add(dir.Mul(distance))
	}
	capped := math.Min(distance, maxDistance)
	return false, capped, origin.Add(dir.Mul(capped))
}

// SphereIntersection evaluates whether a sphere strictly penetrates the field.
func SphereIntersection(field SignedDistanceField, center mgl64.Vec3, radius float64) (bool, float64) {
	//1.- Sample the field at the sphere center and subtract the radius to compute clearance.
	separation := field.Sample(center) - radius
	return separation < 0, separation
}
