package input

import (
	"sync"

	"parkarena/broker/internal/physics"
)

// Slot holds the most recent accepted controls for the simulation loop.
// Writers are connection goroutines; the loop is the only reader.
type Slot struct {
	mu       sync.Mutex
	owner    string
	controls physics.Controls
}

// Store publishes controls from a client; the latest writer owns the slot.
func (s *Slot) Store(clientID string, controls physics.Controls) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.owner = clientID
	s.controls = controls
	s.mu.Unlock()
}

// Load returns the held controls.
func (s *Slot) Load() physics.Controls {
	if s == nil {
		return physics.Controls{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls
}

// Release drops held controls when their owner disconnects so keys never stick.
func (s *Slot) Release(clientID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.owner == clientID {
		s.owner = ""
		s.controls = physics.Controls{}
	}
	s.mu.Unlock()
}

// Owner reports which client last stored controls.
func (s *Slot) Owner() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}
