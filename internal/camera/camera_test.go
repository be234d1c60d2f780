package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"parkarena/broker/internal/physics"
)

func vecClose(a, b mgl64.Vec3) bool {
	return a.Sub(b).Len() < 1e-9
}

func TestLockedGroundSitsBehindAndAbove(t *testing.T) {
	in := Input{Kind: physics.KindGround, Mode: ModeLocked, Position: mgl64.Vec3{0, 0.25, -45}, Dt: 1.0 / 60}
	pose := Derive(Pose{}, in)
	want := mgl64.Vec3{0, 4.25, -53}
	if !vecClose(pose.Position, want) {
		t.Fatalf("expected %v, got %v", want, pose.Position)
	}
	if pose.Target[1] >= pose.Position[1] || pose.Target[2] <= pose.Position[2] {
		t.Fatalf("expected target ahead and below, got %v", pose.Target)
	}

	in.Heading = 90
	in.Zoom = 2
	pose = Derive(Pose{}, in)
	want = mgl64.Vec3{-10, 5.25, -45}
	if !vecClose(pose.Position, want) {
		t.Fatalf("expected %v at heading 90, got %v", want, pose.Position)
	}
}

func TestLockedPlaneIgnoresHeading(t *testing.T) {
	in := Input{Kind: physics.KindAir, Mode: ModeLocked, Position: mgl64.Vec3{1, 5, -45}, Heading: 45, Zoom: -2}
	pose := Derive(Pose{}, in)
	want := mgl64.Vec3{1, 9, -58}
	if !vecClose(pose.Position, want) {
		t.Fatalf("expected %v, got %v", want, pose.Position)
	}
}

func TestChaseEasesTowardsAnchor(t *testing.T) {
	in := Input{Kind: physics.KindGround, Mode: ModeChase, Position: mgl64.Vec3{0, 0.25, 0}, Dt: 0.1}
	prev := Pose{Position: mgl64.Vec3{0, 4.25, 0}}
	pose := Derive(prev, in)
	//1.- Half way from z=0 to the anchor at z=-8.
	if math.Abs(pose.Position[2]+4) > 1e-9 {
		t.Fatalf("expected z=-4, got %.6f", pose.Position[2])
	}
	in.Dt = 1
	pose = Derive(prev, in)
	if math.Abs(pose.Position[2]+8) > 1e-9 {
		t.Fatalf("expected saturated blend to reach the anchor, got %.6f", pose.Position[2])
	}
}

func TestCinematicFollowsOrbitAndLooksAtVehicle(t *testing.T) {
	in := Input{Kind: physics.KindGround, Mode: ModeCinematic, Position: mgl64.Vec3{0, 0.25, 0}, Clock: 0, Dt: 1}
	pose := Derive(Pose{}, in)
	//1.- At t=0 the orbit is radius 10 on +x at height 6, fully blended with dt=1.
	if !vecClose(pose.Position, mgl64.Vec3{10, 6.25, 0}) {
		t.Fatalf("unexpected orbit position %v", pose.Position)
	}
	if !vecClose(pose.Target, mgl64.Vec3{0, 1.25, 0}) {
		t.Fatalf("unexpected target %v", pose.Target)
	}

	in.Kind = physics.KindAir
	pose = Derive(Pose{}, in)
	if !vecClose(pose.Position, mgl64.Vec3{21, 12.25, 0}) {
		t.Fatalf("unexpected plane orbit %v", pose.Position)
	}
}

func TestNextCyclesAndPanicsOnUnknown(t *testing.T) {
	modes := Modes()
	if Next(modes, ModeLocked) != ModeChase || Next(modes, ModeCinematic) != ModeLocked {
		t.Fatal("unexpected cycle order")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown mode")
		}
	}()
	Next(modes, Mode("orbit"))
}

func TestDeriveUnknownModePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Derive(Pose{}, Input{Mode: "free"})
}

func TestClampZoomAndParseMode(t *testing.T) {
	if got := ClampZoom(20, DefaultZoomMin, DefaultZoomMax); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
	if got := ClampZoom(-9, DefaultZoomMin, DefaultZoomMax); got != -3 {
		t.Fatalf("expected -3, got %d", got)
	}
	if mode, err := ParseMode(" Chase "); err != nil || mode != ModeChase {
		t.Fatalf("expected chase, got %q err=%v", mode, err)
	}
	if _, err := ParseMode("drone"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
