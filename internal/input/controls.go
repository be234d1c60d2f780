package input

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"parkarena/broker/internal/physics"
)

// ErrUnknownControl is returned when a frame names a control the simulation does not expose.
var ErrUnknownControl = errors.New("unknown control")

// Logical control names shared by every host.
const (
	ControlForward      = "forward"
	ControlBackward     = "backward"
	ControlSteerLeft    = "steer_left"
	ControlSteerRight   = "steer_right"
	ControlBrake        = "brake"
	ControlThrottleUp   = "throttle_up"
	ControlThrottleDown = "throttle_down"
	ControlPitchUp      = "pitch_up"
	ControlPitchDown    = "pitch_down"
	ControlYawLeft      = "yaw_left"
	ControlYawRight     = "yaw_right"
)

var controlSetters = map[string]func(*physics.Controls, bool){
	ControlForward:      func(c *physics.Controls, held bool) { c.Forward = held },
	ControlBackward:     func(c *physics.Controls, held bool) { c.Backward = held },
	ControlSteerLeft:    func(c *physics.Controls, held bool) { c.SteerLeft = held },
	ControlSteerRight:   func(c *physics.Controls, held bool) { c.SteerRight = held },
	ControlBrake:        func(c *physics.Controls, held bool) { c.Brake = held },
	ControlThrottleUp:   func(c *physics.Controls, held bool) { c.ThrottleUp = held },
	ControlThrottleDown: func(c *physics.Controls, held bool) { c.ThrottleDown = held },
	ControlPitchUp:      func(c *physics.Controls, held bool) { c.PitchUp = held },
	ControlPitchDown:    func(c *physics.Controls, held bool) { c.PitchDown = held },
	ControlYawLeft:      func(c *physics.Controls, held bool) { c.YawLeft = held },
	ControlYawRight:     func(c *physics.Controls, held bool) { c.YawRight = held },
}

// ControlNames lists every logical control in a stable order.
func ControlNames() []string {
	names := make([]string, 0, len(controlSetters))
	for name := range controlSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseControls maps named flags onto a control snapshot. Unknown names are
// rejected so typos never silently drop a held key.
func ParseControls(flags map[string]bool) (physics.Controls, error) {
	var controls physics.Controls
	var unknown []string
	for name, held := range flags {
		setter, ok := controlSetters[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		setter(&controls, held)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return physics.Controls{}, fmt.Errorf("%w: %s", ErrUnknownControl, strings.Join(unknown, ", "))
	}
	return controls, nil
}

// Held returns the names of the controls set in the snapshot, sorted.
func Held(controls physics.Controls) []string {
	var held []string
	for _, name := range ControlNames() {
		probe := physics.Controls{}
		controlSetters[name](&probe, true)
		if matches(controls, probe) {
			held = append(held, name)
		}
	}
	return held
}

// matches reports whether every flag set in probe is also set in controls.
func matches(controls, probe physics.Controls) bool {
	return (!probe.Forward || controls.Forward) &&
		(!probe.Backward || controls.Backward) &&
		(!probe.SteerLeft || controls.SteerLeft) &&
		(!probe.SteerRight || controls.SteerRight) &&
		(!probe.Brake || controls.Brake) &&
		(!probe.ThrottleUp || controls.ThrottleUp) &&
		(!probe.ThrottleDown || controls.ThrottleDown) &&
		(!probe.PitchUp || controls.PitchUp) &&
		(!probe.PitchDown || controls.PitchDown) &&
		(!probe.YawLeft || controls.YawLeft) &&
		(!probe.YawRight || controls.YawRight)
}
