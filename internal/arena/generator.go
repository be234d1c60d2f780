package arena

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"parkarena/broker/internal/collision"
	"parkarena/broker/internal/physics"
)

const (
	treeTrunkHalfWidth  = 0.15
	treeTrunkHalfHeight = 1
	treeCrownY          = 2.5
	treeCrownRadius     = 0.9
	treeSpacing         = 2.5
	aiCarCenterY        = 0.25
)

var aiCarHalfExtents = mgl64.Vec3{0.5, 0.25, 1}

// Set is one generation of arena content for a vehicle kind.
type Set struct {
	Kind       physics.Kind       `json:"kind"`
	Generation uint64             `json:"generation"`
	Obstacles  []collision.Volume `json:"obstacles"`
	Boundaries []collision.Volume `json:"boundaries"`
	wanderers  []wanderer
}

type wanderer struct {
	index  int
	anchor mgl64.Vec3
	phase  float64
	radius float64
}

// Advance moves dynamic obstacles to their positions at the given simulation clock.
func (s *Set) Advance(clock float64) {
	if s == nil {
		return
	}
	for _, w := range s.wanderers {
		//1.- Each AI car orbits its anchor so its path never leaves the flank.
		offset := mgl64.Vec3{math.Sin(clock+w.phase) * w.radius, 0, math.Cos(clock+w.phase) * w.radius}
		s.Obstacles[w.index].Center = w.anchor.Add(offset)
	}
}

// Generator produces obstacle sets from a root seed.
type Generator struct {
	layout     Layout
	seed       int64
	generation uint64
}

// NewGenerator constructs a generator for the layout. Equal seeds yield equal
// sequences of sets.
func NewGenerator(layout Layout, seed int64) *Generator {
	return &Generator{layout: layout, seed: seed}
}

// Layout returns the arena layout.
func (g *Generator) Layout() Layout {
	if g == nil {
		return DefaultLayout()
	}
	return g.layout
}

// Seed returns the root seed.
func (g *Generator) Seed() int64 {
	if g == nil {
		return 0
	}
	return g.seed
}

// Build generates fresh obstacles for the vehicle kind. Every call advances
// the generation so consecutive sets differ.
func (g *Generator) Build(kind physics.Kind) *Set {
	g.generation++
	set := &Set{
		Kind:       kind,
		Generation: g.generation,
		Boundaries: g.layout.Boundaries(),
	}
	switch kind {
	case physics.KindAir:
		set.Obstacles = g.airObstacles(g.subsystemRNG("air"))
	default:
		set.Obstacles = g.groundRows(g.subsystemRNG("rows"))
		set.Obstacles = append(set.Obstacles, g.trees(g.subsystemRNG("trees"))...)
		set.wanderers = g.aiCars(g.subsystemRNG("ai"), set)
	}
	set.Advance(0)
	return set
}

func (g *Generator) subsystemRNG(label string) *rand.Rand {
	//1.- Hash the root seed, generation and label into an independent stream per subsystem.
	hasher := fnv.New64a()
	hasher.Write([]byte(strconv.FormatInt(g.seed, 10)))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strconv.FormatUint(g.generation, 10)))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return rand.New(rand.NewSource(int64(sum)))
}

// groundRows fills every row with blocks, leaving one random slot open.
func (g *Generator) groundRows(rng *rand.Rand) []collision.Volume {
	l := g.layout
	if l.RowSpacing <= 0 || len(l.Slots) == 0 {
		return nil
	}
	half := mgl64.Vec3{l.BlockHalf, l.BlockHalf, l.BlockHalf}
	var blocks []collision.Volume
	row := 0
	for z := l.RowStart; z < l.RowEnd; z += l.RowSpacing {
		gap := rng.Intn(len(l.Slots))
		for slot, x := range l.Slots {
			if slot == gap {
				continue
			}
			id := fmt.Sprintf("row%d-slot%d", row, slot)
			blocks = append(blocks, collision.NewBox(id, collision.CategoryCarObstacle, mgl64.Vec3{x, l.BlockCenterY, z}, half))
		}
		row++
	}
	return blocks
}

// airObstacles scatters spheres uniformly through the air course.
func (g *Generator) airObstacles(rng *rand.Rand) []collision.Volume {
	l := g.layout
	count := l.AirObstacles
	if count < 0 {
		count = 0
	}
	spheres := make([]collision.Volume, 0, count)
	for i := 0; i < count; i++ {
		center := mgl64.Vec3{
			randomBetween(rng, l.AirMin[0], l.AirMax[0]),
			randomBetween(rng, l.AirMin[1], l.AirMax[1]),
			randomBetween(rng, l.AirMin[2], l.AirMax[2]),
		}
		spheres = append(spheres, collision.NewSphere(fmt.Sprintf("sphere-%d", i), collision.CategorySphere, center, l.AirRadius))
	}
	return spheres
}

// trees plants trunk and crown pairs on both flanks of the course.
func (g *Generator) trees(rng *rand.Rand) []collision.Volume {
	l := g.layout
	if l.Trees <= 0 {
		return nil
	}
	placed := make([]mgl64.Vec3, 0, l.Trees)
	attempts := 0
	maxAttempts := l.Trees * 20
	for len(placed) < l.Trees && attempts < maxAttempts {
		attempts++
		candidate := flankPoint(rng, l.FlankInner, l.FlankOuter, l.RowStart, l.RowEnd)
		if tooClose(candidate, placed, treeSpacing) {
			continue
		}
		placed = append(placed, candidate)
	}

	volumes := make([]collision.Volume, 0, len(placed)*2)
	for i, base := range placed {
		trunk := mgl64.Vec3{base[0], treeTrunkHalfHeight, base[2]}
		crown := mgl64.Vec3{base[0], treeCrownY, base[2]}
		volumes = append(volumes,
			collision.NewBox(fmt.Sprintf("tree-%d-trunk", i), collision.CategoryTree, trunk, mgl64.Vec3{treeTrunkHalfWidth, treeTrunkHalfHeight, treeTrunkHalfWidth}),
			collision.NewSphere(fmt.Sprintf("tree-%d-crown", i), collision.CategoryTree, crown, treeCrownRadius),
		)
	}
	return volumes
}

// aiCars appends wandering cars to the set and returns their motion plans.
func (g *Generator) aiCars(rng *rand.Rand, set *Set) []wanderer {
	l := g.layout
	if l.AICars <= 0 {
		return nil
	}
	var occupied []mgl64.Vec3
	for _, volume := range set.Obstacles {
		if volume.Category == collision.CategoryTree && volume.Shape == collision.ShapeBox {
			occupied = append(occupied, mgl64.Vec3{volume.Center[0], 0, volume.Center[2]})
		}
	}

	clearance := l.WanderRadius + treeSpacing
	inner := math.Min(l.FlankInner+l.WanderRadius, l.FlankOuter)
	var plans []wanderer
	attempts := 0
	maxAttempts := l.AICars * 20
	for len(plans) < l.AICars && attempts < maxAttempts {
		attempts++
		base := flankPoint(rng, inner, l.FlankOuter, l.RowStart, l.RowEnd)
		if tooClose(base, occupied, clearance) {
			continue
		}
		occupied = append(occupied, base)
		id := fmt.Sprintf("ai-car-%d", len(plans))
		anchor := mgl64.Vec3{base[0], aiCarCenterY, base[2]}
		volume := collision.NewBox(id, collision.CategoryAICar, anchor, aiCarHalfExtents)
		volume.Dynamic = true
		set.Obstacles = append(set.Obstacles, volume)
		plans = append(plans, wanderer{
			index:  len(set.Obstacles) - 1,
			anchor: anchor,
			phase:  rng.Float64() * 2 * math.Pi,
			radius: l.WanderRadius,
		})
	}
	return plans
}

func flankPoint(rng *rand.Rand, inner, outer, minZ, maxZ float64) mgl64.Vec3 {
	x := randomBetween(rng, inner, outer)
	if rng.Intn(2) == 0 {
		x = -x
	}
	return mgl64.Vec3{x, 0, randomBetween(rng, minZ, maxZ)}
}

func tooClose(candidate mgl64.Vec3, placed []mgl64.Vec3, spacing float64) bool {
	for _, other := range placed {
		if candidate.Sub(other).Len() < spacing {
			return true
		}
	}
	return false
}

func randomBetween(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}
