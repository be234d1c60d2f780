package main

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"parkarena/broker/internal/match"
)

func TestTranslateKeyBindings(t *testing.T) {
	if act := translateKey(tcell.KeyRune, 'W'); len(act.controls) != 2 || act.command != "" {
		t.Fatalf("expected W to drive forward and pitch, got %+v", act)
	}
	if act := translateKey(tcell.KeyRune, 'e'); act.command != match.CommandZoomIn {
		t.Fatalf("expected e to zoom in, got %+v", act)
	}
	if act := translateKey(tcell.KeyRune, 'q'); act.command != match.CommandZoomOut {
		t.Fatalf("expected q to zoom out, got %+v", act)
	}
	if act := translateKey(tcell.KeyEnter, 0); act.command != match.CommandStart {
		t.Fatalf("expected Enter to start, got %+v", act)
	}
	if act := translateKey(tcell.KeyEscape, 0); !act.quit {
		t.Fatalf("expected Esc to quit, got %+v", act)
	}
	if act := translateKey(tcell.KeyRune, 'z'); len(act.controls) != 0 || act.command != "" || act.quit {
		t.Fatalf("expected an unbound key to do nothing, got %+v", act)
	}
}

func TestHoldTrackerExpiresAfterWindow(t *testing.T) {
	held := newHoldTracker(250 * time.Millisecond)
	start := time.Unix(0, 0)
	held.Press(translateKey(tcell.KeyRune, 'w').controls, start)
	held.Press(translateKey(tcell.KeyUp, 0).controls, start.Add(100*time.Millisecond))

	controls := held.Controls(start.Add(200 * time.Millisecond))
	if !controls.Forward || !controls.PitchUp || !controls.ThrottleUp {
		t.Fatalf("expected both presses to be held, got %+v", controls)
	}
	controls = held.Controls(start.Add(300 * time.Millisecond))
	if controls.Forward || !controls.ThrottleUp {
		t.Fatalf("expected only the later press to survive, got %+v", controls)
	}
	//1.- Auto-repeat refreshes the window.
	held.Press(translateKey(tcell.KeyUp, 0).controls, start.Add(340*time.Millisecond))
	if controls = held.Controls(start.Add(500 * time.Millisecond)); !controls.ThrottleUp {
		t.Fatal("expected repeated presses to keep the key held")
	}
	if controls = held.Controls(start.Add(time.Second)); controls.ThrottleUp {
		t.Fatal("expected the key to release once presses stop")
	}
}
