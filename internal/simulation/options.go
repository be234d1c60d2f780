package simulation

import (
	"fmt"

	"parkarena/broker/internal/arena"
	"parkarena/broker/internal/camera"
	"parkarena/broker/internal/config"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

// SessionOptions translates host configuration into session options.
func SessionOptions(cfg *config.Config) ([]match.Option, error) {
	if cfg == nil {
		return nil, nil
	}
	kind, err := physics.ParseKind(cfg.Session.Vehicle)
	if err != nil {
		return nil, fmt.Errorf("session vehicle: %w", err)
	}
	modes := make([]camera.Mode, 0, len(cfg.Session.CameraModes))
	for _, raw := range cfg.Session.CameraModes {
		mode, err := camera.ParseMode(raw)
		if err != nil {
			return nil, fmt.Errorf("session camera modes: %w", err)
		}
		modes = append(modes, mode)
	}
	return []match.Option{
		match.WithVehicle(kind),
		match.WithGroundTuning(GroundTuning(cfg.Ground)),
		match.WithAirTuning(AirTuning(cfg.Air)),
		match.WithLayout(Layout(cfg.Arena)),
		match.WithSeed(cfg.Session.Seed),
		match.WithDelays(cfg.Session.CrashDelay, cfg.Session.SuccessDelay),
		match.WithZoomRange(cfg.Session.ZoomMin, cfg.Session.ZoomMax),
		match.WithCameraModes(modes),
		match.WithStartGate(cfg.Session.RequireStart),
	}, nil
}

// GroundTuning overlays the non-zero overrides onto the stock car handling.
func GroundTuning(cfg config.GroundConfig) physics.GroundTuning {
	tuning := physics.DefaultGroundTuning()
	overlay(&tuning.Accel, cfg.Accel)
	overlay(&tuning.ReverseAccel, cfg.ReverseAccel)
	overlay(&tuning.MaxSpeed, cfg.MaxSpeed)
	overlay(&tuning.MaxReverse, cfg.MaxReverse)
	overlay(&tuning.Friction, cfg.Friction)
	overlay(&tuning.SteerRate, cfg.SteerRate)
	return tuning
}

// AirTuning overlays the non-zero overrides onto the stock plane handling.
func AirTuning(cfg config.AirConfig) physics.AirTuning {
	tuning := physics.DefaultAirTuning()
	overlay(&tuning.Accel, cfg.Accel)
	overlay(&tuning.MaxSpeed, cfg.MaxSpeed)
	overlay(&tuning.Friction, cfg.Friction)
	overlay(&tuning.PitchRate, cfg.TurnRate)
	overlay(&tuning.YawRate, cfg.TurnRate)
	return tuning
}

// Layout applies the arena overrides to the stock layout.
func Layout(cfg config.ArenaConfig) arena.Layout {
	layout := arena.DefaultLayout()
	layout.ClosedBack = cfg.ClosedBack
	if cfg.Trees >= 0 {
		layout.Trees = cfg.Trees
	}
	if cfg.AICars >= 0 {
		layout.AICars = cfg.AICars
	}
	if cfg.AirObstacles > 0 {
		layout.AirObstacles = cfg.AirObstacles
	}
	return layout
}

func overlay(target *float64, value float64) {
	if value > 0 {
		*target = value
	}
}
