package main

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"parkarena/broker/internal/input"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

// holdWindow is how long a key counts as held after its last press or
// auto-repeat. Terminals report presses only, never releases.
const holdWindow = 250 * time.Millisecond

// Letter keys drive both vehicles; the body ignores the controls it does not use.
var runeControls = map[rune][]string{
	'w': {input.ControlForward, input.ControlPitchUp},
	's': {input.ControlBackward, input.ControlPitchDown},
	'a': {input.ControlSteerLeft, input.ControlYawLeft},
	'd': {input.ControlSteerRight, input.ControlYawRight},
	'b': {input.ControlBrake},
}

var keyControls = map[tcell.Key][]string{
	tcell.KeyUp:   {input.ControlThrottleUp},
	tcell.KeyDown: {input.ControlThrottleDown},
}

var runeCommands = map[rune]match.Command{
	'r': match.CommandReset,
	'c': match.CommandToggleVehicleMode,
	'v': match.CommandCycleCameraMode,
	'q': match.CommandZoomOut,
	'e': match.CommandZoomIn,
}

// action is what one key event asks for.
type action struct {
	controls []string
	command  match.Command
	quit     bool
}

// translate maps a key event onto controls, a command or quit.
func translate(ev *tcell.EventKey) action {
	return translateKey(ev.Key(), ev.Rune())
}

func translateKey(key tcell.Key, r rune) action {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return action{quit: true}
	case tcell.KeyEnter:
		return action{command: match.CommandStart}
	case tcell.KeyRune:
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if command, ok := runeCommands[r]; ok {
			return action{command: command}
		}
		return action{controls: runeControls[r]}
	default:
		return action{controls: keyControls[key]}
	}
}

// holdTracker turns press events into a held-key snapshot.
type holdTracker struct {
	window time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newHoldTracker(window time.Duration) *holdTracker {
	if window <= 0 {
		window = holdWindow
	}
	return &holdTracker{window: window, lastSeen: make(map[string]time.Time)}
}

// Press marks the named controls as held from now.
func (h *holdTracker) Press(names []string, now time.Time) {
	h.mu.Lock()
	for _, name := range names {
		h.lastSeen[name] = now
	}
	h.mu.Unlock()
}

// Controls reports the controls pressed within the hold window.
func (h *holdTracker) Controls(now time.Time) physics.Controls {
	h.mu.Lock()
	flags := make(map[string]bool, len(h.lastSeen))
	for name, seen := range h.lastSeen {
		if now.Sub(seen) < h.window {
			flags[name] = true
		} else {
			delete(h.lastSeen, name)
		}
	}
	h.mu.Unlock()
	//1.- Names come from the binding tables so parsing cannot fail.
	controls, _ := input.ParseControls(flags)
	return controls
}
