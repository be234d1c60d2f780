package main

import (
	"fmt"
	"strings"

	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

// hudLines renders the read-outs shown above the arena map.
func hudLines(s match.Snapshot) []string {
	best := "--"
	if s.Best != nil {
		best = fmt.Sprintf("%.1f", *s.Best)
	}
	lines := []string{
		fmt.Sprintf("Speed: %d km/h", int(s.Speed*10)),
		fmt.Sprintf("Time: %.1f", s.Elapsed),
		"Best: " + best,
		fmt.Sprintf("Mode: %s (Cam: %s)", vehicleTitle(s.Vehicle), title(string(s.CameraMode))),
		fmt.Sprintf("Zoom: %d", s.Zoom),
		fmt.Sprintf("Clearance: %.1f m", s.Clearance),
	}
	return lines
}

// banner is the centred message line, or the start prompt while gated.
func banner(s match.Snapshot) string {
	if s.Phase == match.PhaseNotStarted {
		return "Press Enter to start"
	}
	return s.Message
}

const helpLine = "W/S drive or pitch  A/D steer or yaw  B brake  Up/Down throttle  R reset  C car/plane  V camera  Q/E zoom  Esc quit"

func vehicleTitle(kind physics.Kind) string {
	if kind == physics.KindAir {
		return "Plane"
	}
	return "Car"
}

func title(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
