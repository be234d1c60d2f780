package physics

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind discriminates the vehicle variants.
type Kind int

const (
	// KindGround is the car: planar handling with gravity and a ground clamp.
	KindGround Kind = iota
	// KindAir is the plane: thrust along the nose, pitch and yaw, no gravity.
	KindAir
)

// String returns the public name used by hosts and snapshots.
func (k Kind) String() string {
	switch k {
	case KindGround:
		return "car"
	case KindAir:
		return "plane"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by its public name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names understood by ParseKind.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind maps "car"/"plane" (and "ground"/"air") onto a Kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "car", "ground":
		return KindGround, nil
	case "plane", "air":
		return KindAir, nil
	default:
		return KindGround, fmt.Errorf("unknown vehicle kind %q", raw)
	}
}

// Controls is the per-frame snapshot of held logical controls.
type Controls struct {
	Forward      bool `json:"forward"`
	Backward     bool `json:"backward"`
	SteerLeft    bool `json:"steer_left"`
	SteerRight   bool `json:"steer_right"`
	Brake        bool `json:"brake"`
	ThrottleUp   bool `json:"throttle_up"`
	ThrottleDown bool `json:"throttle_down"`
	PitchUp      bool `json:"pitch_up"`
	PitchDown    bool `json:"pitch_down"`
	YawLeft      bool `json:"yaw_left"`
	YawRight     bool `json:"yaw_right"`
}

// GroundTuning holds the car tunables.
type GroundTuning struct {
	Accel            float64
	ReverseAccel     float64
	MaxSpeed         float64
	MaxReverse       float64
	Friction         float64
	Brake            float64
	SteerRate        float64
	SteerDecay       float64
	HeadingSmoothing float64
	Gravity          float64
	GroundClamp      float64
	Spawn            mgl64.Vec3
	SpawnHeading     float64
	HalfExtents      mgl64.Vec3
}

// DefaultGroundTuning returns the stock car handling.
func DefaultGroundTuning() GroundTuning {
	return GroundTuning{
		Accel:            4,
		ReverseAccel:     2,
		MaxSpeed:         9,
		MaxReverse:       4.5,
		Friction:         6,
		Brake:            12,
		SteerRate:        60,
		SteerDecay:       3,
		HeadingSmoothing: 8,
		Gravity:          9.8,
		GroundClamp:      0.25,
		Spawn:            mgl64.Vec3{0, 0.25, -45},
		HalfExtents:      mgl64.Vec3{0.5, 0.25, 1},
	}
}

// AirTuning holds the plane tunables.
type AirTuning struct {
	Accel        float64
	MaxSpeed     float64
	Friction     float64
	PitchRate    float64
	YawRate      float64
	Spawn        mgl64.Vec3
	SpawnHeading float64
	HalfExtents  mgl64.Vec3
}

// DefaultAirTuning returns the stock plane handling.
func DefaultAirTuning() AirTuning {
	return AirTuning{
		Accel:       5,
		MaxSpeed:    15,
		Friction:    1.5,
		PitchRate:   30,
		YawRate:     30,
		Spawn:       mgl64.Vec3{0, 5, -45},
		HalfExtents: mgl64.Vec3{0.5, 0.15, 1.5},
	}
}

// Pose is the observable placement of a vehicle.
type Pose struct {
	Position mgl64.Vec3 `json:"position"`
	Heading  float64    `json:"heading"`
	Pitch    float64    `json:"pitch"`
}

// Vehicle is a tagged variant over the ground and air bodies. Only the tuning
// matching Kind is consulted.
type Vehicle struct {
	Kind   Kind
	Ground GroundTuning
	Air    AirTuning

	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Heading  float64
	Pitch    float64

	// Smoothed steering state for the car.
	TargetHeading    float64
	RotationVelocity float64
}

// NewGround builds a car at its spawn pose.
func NewGround(tuning GroundTuning) *Vehicle {
	v := &Vehicle{Kind: KindGround, Ground: tuning}
	v.Reset()
	return v
}

// NewAir builds a plane at its spawn pose.
func NewAir(tuning AirTuning) *Vehicle {
	v := &Vehicle{Kind: KindAir, Air: tuning}
	v.Reset()
	return v
}

// Reset restores the canonical spawn position, heading and zero velocity.
func (v *Vehicle) Reset() {
	if v == nil {
		return
	}
	v.Velocity = mgl64.Vec3{}
	v.Pitch = 0
	v.RotationVelocity = 0
	switch v.Kind {
	case KindAir:
		v.Position = v.Air.Spawn
		v.Heading = WrapHeading(v.Air.SpawnHeading)
	default:
		v.Position = v.Ground.Spawn
		v.Heading = WrapHeading(v.Ground.SpawnHeading)
	}
	v.TargetHeading = v.Heading
}

// Step advances the body by dt seconds. Non-positive timesteps are ignored.
func (v *Vehicle) Step(controls Controls, dt float64) {
	if v == nil || !(dt > 0) {
		return
	}
	switch v.Kind {
	case KindAir:
		stepAir(v, controls, dt)
	default:
		stepGround(v, controls, dt)
	}
}

// Halt zeroes every velocity component while keeping the pose.
func (v *Vehicle) Halt() {
	if v == nil {
		return
	}
	v.Velocity = mgl64.Vec3{}
	v.RotationVelocity = 0
	v.TargetHeading = v.Heading
}

// Speed returns the velocity magnitude.
func (v *Vehicle) Speed() float64 {
	if v == nil {
		return 0
	}
	return v.Velocity.Len()
}

// Forward returns the unit vector the vehicle faces.
func (v *Vehicle) Forward() mgl64.Vec3 {
	if v == nil {
		return mgl64.Vec3{0, 0, 1}
	}
	if v.Kind == KindAir {
		return AttitudeForward(v.Heading, v.Pitch)
	}
	return HeadingForward(v.Heading)
}

// HalfExtents returns the unrotated collider half sizes.
func (v *Vehicle) HalfExtents() mgl64.Vec3 {
	if v.Kind == KindAir {
		return v.Air.HalfExtents
	}
	return v.Ground.HalfExtents
}

// ColliderExtents returns the half sizes of the world-aligned box enclosing
// the vehicle after rotating it by its heading (and pitch for the plane).
func (v *Vehicle) ColliderExtents() mgl64.Vec3 {
	he := v.HalfExtents()
	rad := mgl64.DegToRad(v.Heading)
	c, s := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	//1.- Yaw mixes the x and z extents.
	x := c*he[0] + s*he[2]
	z := s*he[0] + c*he[2]
	y := he[1]
	if v.Kind == KindAir && v.Pitch != 0 {
		//2.- Pitch tips the nose, mixing the long axis into height.
		p := mgl64.DegToRad(v.Pitch)
		pc, ps := math.Abs(math.Cos(p)), math.Abs(math.Sin(p))
		y = pc*he[1] + ps*he[2]
		x = c*he[0] + s*(pc*he[2]+ps*he[1])
		z = s*he[0] + c*(pc*he[2]+ps*he[1])
	}
	return mgl64.Vec3{x, y, z}
}

// Pose returns the observable placement.
func (v *Vehicle) Pose() Pose {
	if v == nil {
		return Pose{}
	}
	return Pose{Position: v.Position, Heading: v.Heading, Pitch: v.Pitch}
}

// Altitude is the height of the collider centre above the world floor.
func (v *Vehicle) Altitude() float64 {
	if v == nil {
		return 0
	}
	return v.Position[1]
}
