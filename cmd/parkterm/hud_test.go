package main

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"parkarena/broker/internal/arena"
	"parkarena/broker/internal/camera"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

func TestHUDLines(t *testing.T) {
	best := 12.34
	lines := hudLines(match.Snapshot{
		Vehicle:    physics.KindAir,
		Speed:      4.27,
		Elapsed:    3.26,
		Best:       &best,
		CameraMode: camera.ModeChase,
		Zoom:       -2,
		Clearance:  7.5,
	})
	want := []string{"Speed: 42 km/h", "Time: 3.3", "Best: 12.3", "Mode: Plane (Cam: Chase)", "Zoom: -2", "Clearance: 7.5 m"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected HUD\n got: %q\nwant: %q", lines, want)
	}
	if lines := hudLines(match.Snapshot{}); lines[2] != "Best: --" || lines[3] != "Mode: Car (Cam: )" {
		t.Fatalf("unexpected empty HUD %q", lines)
	}
}

func TestBannerPromptsUntilStarted(t *testing.T) {
	if got := banner(match.Snapshot{Phase: match.PhaseNotStarted, Message: "ignored"}); got != "Press Enter to start" {
		t.Fatalf("unexpected banner %q", got)
	}
	if got := banner(match.Snapshot{Phase: match.PhaseCrashed, Message: "Crash!"}); got != "Crash!" {
		t.Fatalf("unexpected banner %q", got)
	}
}

func TestViewportProjectsFloorCorners(t *testing.T) {
	layout := arena.DefaultLayout()
	view := newViewport(layout, 2, 3, 32, 102)
	col, row, ok := view.project(0, 0)
	if !ok || col != 2+16 || row != 3+51 {
		t.Fatalf("centre projected to (%d,%d,%t)", col, row, ok)
	}
	if col, row, ok = view.project(-view.halfX, view.halfZ); !ok || col != 2 || row != 3 {
		t.Fatalf("far-left corner projected to (%d,%d,%t)", col, row, ok)
	}
	if col, row, ok = view.project(view.halfX, -view.halfZ); !ok || col != 2+31 || row != 3+101 {
		t.Fatalf("near-right corner projected to (%d,%d,%t)", col, row, ok)
	}
	if _, _, ok = view.project(0, view.halfZ+1); ok {
		t.Fatal("expected points beyond the walls to be off screen")
	}
}

func TestArrowFollowsHeading(t *testing.T) {
	cases := map[float64]rune{0: '^', 90: '>', 180: 'v', 270: '<', -90: '<', 44: '/', 359: '^'}
	for heading, want := range cases {
		if got := arrowFor(heading); got != want {
			t.Fatalf("arrowFor(%v) = %q, want %q", heading, got, want)
		}
	}
}

func TestDrawRendersWithoutPanicking(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(80, 40)

	session := match.NewSession(match.WithSeed(3))
	draw(screen, session.Layout(), session.Snapshot())
	session.ToggleVehicleMode()
	draw(screen, session.Layout(), session.Snapshot())
}
