package match

import (
	"parkarena/broker/internal/collision"
	"parkarena/broker/internal/physics"
)

// Phase is the session state tag.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseDriving    Phase = "driving"
	PhaseCrashed    Phase = "crashed"
	PhaseSucceeded  Phase = "succeeded"
)

// Latched reports whether the phase freezes the body until the deferred reset.
func (p Phase) Latched() bool {
	return p == PhaseCrashed || p == PhaseSucceeded
}

// EventKind classifies session events.
type EventKind string

const (
	EventCrash       EventKind = "crash"
	EventSuccess     EventKind = "success"
	EventTooFast     EventKind = "too_fast"
	EventReset       EventKind = "reset"
	EventVehicleMode EventKind = "vehicle_mode"
	EventCameraMode  EventKind = "camera_mode"
	EventStart       EventKind = "start"
)

// Messages shown to the player.
const (
	MessageCrash          = "Crash!"
	MessagePerfectParking = "Perfect Parking!"
	MessagePerfectLanding = "Perfect Landing!"
	MessageTooFast        = "Too fast!"
)

// Event is a discrete session occurrence observed by hosts.
type Event struct {
	Kind       EventKind          `json:"kind"`
	Tick       uint64             `json:"tick"`
	Clock      float64            `json:"clock"`
	Vehicle    physics.Kind       `json:"vehicle"`
	Category   collision.Category `json:"category,omitempty"`
	ObstacleID string             `json:"obstacle_id,omitempty"`
	Elapsed    float64            `json:"elapsed,omitempty"`
	Best       *float64           `json:"best,omitempty"`
	Detail     string             `json:"detail,omitempty"`
}

// Outcome summarises one Advance call.
type Outcome struct {
	Phase  Phase   `json:"phase"`
	Events []Event `json:"events,omitempty"`
}

// Observer receives every event as it is emitted.
type Observer interface {
	ObserveEvent(Event)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(Event)

// ObserveEvent invokes the wrapped function.
func (f ObserverFunc) ObserveEvent(event Event) {
	if f != nil {
		f(event)
	}
}
