package simulation

import (
	"errors"
	"testing"
	"time"

	"parkarena/broker/internal/camera"
	"parkarena/broker/internal/config"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

func TestSessionOptionsApplyConfig(t *testing.T) {
	cfg := &config.Config{
		Session: config.SessionConfig{
			Vehicle:      "plane",
			CrashDelay:   time.Second,
			SuccessDelay: time.Second,
			ZoomMin:      -1,
			ZoomMax:      2,
			CameraModes:  []string{"chase", "locked"},
			RequireStart: true,
			Seed:         42,
		},
		Arena: config.ArenaConfig{ClosedBack: true, AirObstacles: 3},
	}
	opts, err := SessionOptions(cfg)
	if err != nil {
		t.Fatalf("SessionOptions: %v", err)
	}
	session := match.NewSession(opts...)
	snapshot := session.Snapshot()
	if snapshot.Vehicle != physics.KindAir {
		t.Fatalf("expected plane, got %q", snapshot.Vehicle)
	}
	if snapshot.Phase != match.PhaseNotStarted {
		t.Fatalf("expected the start gate to hold the session, got %q", snapshot.Phase)
	}
	if snapshot.CameraMode != camera.ModeChase {
		t.Fatalf("expected the first configured camera mode, got %q", snapshot.CameraMode)
	}
	if session.Seed() != 42 {
		t.Fatalf("expected seed 42, got %d", session.Seed())
	}
	layout := session.Layout()
	if !layout.ClosedBack || layout.AirObstacles != 3 {
		t.Fatalf("arena overrides not applied: %+v", layout)
	}
}

func TestSessionOptionsRejectUnknownNames(t *testing.T) {
	if _, err := SessionOptions(&config.Config{Session: config.SessionConfig{Vehicle: "boat"}}); err == nil {
		t.Fatal("expected an unknown vehicle to fail")
	}
	_, err := SessionOptions(&config.Config{Session: config.SessionConfig{Vehicle: "car", CameraModes: []string{"drone"}}})
	if err == nil {
		t.Fatal("expected an unknown camera mode to fail")
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("expected a wrapped error, got %v", err)
	}
}

func TestTuningOverlayKeepsDefaultsForZero(t *testing.T) {
	ground := GroundTuning(config.GroundConfig{MaxSpeed: 12})
	stock := physics.DefaultGroundTuning()
	if ground.MaxSpeed != 12 || ground.Accel != stock.Accel {
		t.Fatalf("unexpected ground tuning %+v", ground)
	}
	air := AirTuning(config.AirConfig{TurnRate: 45})
	if air.PitchRate != 45 || air.YawRate != 45 || air.MaxSpeed != physics.DefaultAirTuning().MaxSpeed {
		t.Fatalf("unexpected air tuning %+v", air)
	}
}
