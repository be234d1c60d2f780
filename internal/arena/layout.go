package arena

import (
	"github.com/go-gl/mathgl/mgl64"

	"parkarena/broker/internal/collision"
)

// Layout shapes the arena and its procedural content.
type Layout struct {
	// Floor footprint; the floor is centred on the origin.
	Width  float64
	Length float64

	WallThickness float64
	WallHeight    float64
	// ClosedBack adds a wall behind the spawn point; the stock arena leaves it open.
	ClosedBack bool

	// Ground course: rows from RowStart (inclusive) to RowEnd (exclusive).
	RowStart     float64
	RowEnd       float64
	RowSpacing   float64
	Slots        []float64
	BlockHalf    float64
	BlockCenterY float64

	// Air course: spheres scattered uniformly inside [AirMin, AirMax].
	AirObstacles int
	AirRadius    float64
	AirMin       mgl64.Vec3
	AirMax       mgl64.Vec3

	// Flank decorations for the ground course.
	Trees        int
	AICars       int
	FlankInner   float64
	FlankOuter   float64
	WanderRadius float64

	Parking ParkingZone
	Landing LandingZone
}

// DefaultLayout returns the stock arena.
func DefaultLayout() Layout {
	return Layout{
		Width:         30,
		Length:        100,
		WallThickness: 1,
		WallHeight:    3,
		RowStart:      -40,
		RowEnd:        40,
		RowSpacing:    10,
		Slots:         []float64{-4, -2, 0, 2, 4},
		BlockHalf:     0.5,
		BlockCenterY:  0.5,
		AirObstacles:  10,
		AirRadius:     0.5,
		AirMin:        mgl64.Vec3{-10, 2, -30},
		AirMax:        mgl64.Vec3{10, 8, 40},
		FlankInner:    6,
		FlankOuter:    12,
		WanderRadius:  1.5,
		Parking: ParkingZone{
			Box:       collision.Box{Center: mgl64.Vec3{0, 0.25, 45}, HalfExtents: mgl64.Vec3{1.4, 0.25, 1.9}},
			Heading:   0,
			Tolerance: 15,
		},
		Landing: LandingZone{
			Box:         collision.Box{Center: mgl64.Vec3{0, 0.5, 50}, HalfExtents: mgl64.Vec3{3, 0.5, 3}},
			MaxSpeed:    2,
			MaxAltitude: 1.5,
		},
	}
}

// Boundaries builds the invisible walls around the floor.
func (l Layout) Boundaries() []collision.Volume {
	halfW := l.Width / 2
	halfL := l.Length / 2
	halfT := l.WallThickness / 2
	halfH := l.WallHeight / 2
	walls := []collision.Volume{
		collision.NewBox("wall-left", collision.CategoryWall, mgl64.Vec3{-halfW, halfH, 0}, mgl64.Vec3{halfT, halfH, halfL}),
		collision.NewBox("wall-right", collision.CategoryWall, mgl64.Vec3{halfW, halfH, 0}, mgl64.Vec3{halfT, halfH, halfL}),
		collision.NewBox("wall-front", collision.CategoryWall, mgl64.Vec3{0, halfH, halfL}, mgl64.Vec3{halfW, halfH, halfT}),
	}
	if l.ClosedBack {
		walls = append(walls, collision.NewBox("wall-back", collision.CategoryWall, mgl64.Vec3{0, halfH, -halfL}, mgl64.Vec3{halfW, halfH, halfT}))
	}
	return walls
}
