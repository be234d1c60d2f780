package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Category tags what a volume represents so the session can report it.
type Category string

const (
	CategoryWall        Category = "wall"
	CategoryCarObstacle Category = "car_obstacle"
	CategoryTree        Category = "tree"
	CategoryAICar       Category = "ai_car"
	CategorySphere      Category = "sphere_obstacle"
)

// Shape selects the geometry of a volume.
type Shape string

const (
	ShapeBox    Shape = "box"
	ShapeSphere Shape = "sphere"
)

// Box is an axis-aligned box described by its centre and half sizes.
type Box struct {
	Center      mgl64.Vec3 `json:"center"`
	HalfExtents mgl64.Vec3 `json:"half_extents"`
}

// Min returns the lowest corner.
func (b Box) Min() mgl64.Vec3 { return b.Center.Sub(b.HalfExtents) }

// Max returns the highest corner.
func (b Box) Max() mgl64.Vec3 { return b.Center.Add(b.HalfExtents) }

// Overlaps reports whether the open interiors of two boxes intersect. Boxes
// that only share a face, edge or corner do not overlap.
func (b Box) Overlaps(other Box) bool {
	for axis := 0; axis < 3; axis++ {
		if math.Abs(b.Center[axis]-other.Center[axis]) >= b.HalfExtents[axis]+other.HalfExtents[axis] {
			return false
		}
	}
	return true
}

// Contains reports whether a point lies strictly inside the box.
func (b Box) Contains(point mgl64.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		if math.Abs(point[axis]-b.Center[axis]) >= b.HalfExtents[axis] {
			return false
		}
	}
	return true
}

// Field exposes the box as a signed distance field.
func (b Box) Field() BoxField {
	return BoxField{Center: b.Center, HalfExtents: b.HalfExtents}
}

// Volume is one collidable element of the arena.
type Volume struct {
	ID          string     `json:"id"`
	Category    Category   `json:"category"`
	Shape       Shape      `json:"shape"`
	Center      mgl64.Vec3 `json:"center"`
	HalfExtents mgl64.Vec3 `json:"half_extents,omitempty"`
	Radius      float64    `json:"radius,omitempty"`
	Dynamic     bool       `json:"dynamic,omitempty"`
}

// NewBox builds a box volume.
func NewBox(id string, category Category, center, halfExtents mgl64.Vec3) Volume {
	return Volume{ID: id, Category: category, Shape: ShapeBox, Center: center, HalfExtents: halfExtents}
}

// NewSphere builds a sphere volume.
func NewSphere(id string, category Category, center mgl64.Vec3, radius float64) Volume {
	return Volume{ID: id, Category: category, Shape: ShapeSphere, Center: center, Radius: radius}
}

// Bounds returns the axis-aligned box enclosing the volume.
func (v Volume) Bounds() Box {
	if v.Shape == ShapeSphere {
		return Box{Center: v.Center, HalfExtents: mgl64.Vec3{v.Radius, v.Radius, v.Radius}}
	}
	return Box{Center: v.Center, HalfExtents: v.HalfExtents}
}

// Field returns the signed distance field of the volume.
func (v Volume) Field() SignedDistanceField {
	if v.Shape == ShapeSphere {
		return SphereField{Center: v.Center, Radius: v.Radius}
	}
	return v.Bounds().Field()
}

// Overlaps tests the volume against a box collider with open-interval semantics.
func (v Volume) Overlaps(collider Box) bool {
	if v.Shape == ShapeSphere {
		//1.- Distance from the sphere centre to the box must be strictly below the radius.
		hit, _ := SphereIntersection(collider.Field(), v.Center, v.Radius)
		return hit
	}
	return v.Bounds().Overlaps(collider)
}

// Result describes the outcome of a collision query.
type Result struct {
	Hit      bool     `json:"hit"`
	Category Category `json:"category,omitempty"`
	ID       string   `json:"id,omitempty"`
}

// Check returns the first volume, in argument order, that overlaps collider.
// Several sets may be passed so obstacles and boundaries need no concatenation.
func Check(collider Box, sets ...[]Volume) Result {
	for _, set := range sets {
		for _, volume := range set {
			if volume.Overlaps(collider) {
				return Result{Hit: true, Category: volume.Category, ID: volume.ID}
			}
		}
	}
	return Result{}
}

// Clearance marches a ray from origin along direction and returns the free
// distance to the nearest volume, capped at maxDistance.
func Clearance(origin, direction mgl64.Vec3, maxDistance float64, sets ...[]Volume) float64 {
	var union UnionField
	for _, set := range sets {
		for _, volume := range set {
			union = append(union, volume.Field())
		}
	}
	if len(union) == 0 {
		return maxDistance
	}
	_, distance, _ := Raycast(union, origin, direction, maxDistance, 64, 1e-3)
	return math.Min(distance, maxDistance)
}
