package match

// Action names the deferred work a session can schedule.
type Action string

const (
	// ActionReset performs a full session reset when it fires.
	ActionReset Action = "reset"
)

// Scheduler holds at most one deferred action keyed to the simulated clock.
// It is not safe for concurrent use; the owning session serialises access.
type Scheduler struct {
	armed  bool
	action Action
	fireAt float64
}

// Schedule arms the slot. It reports false and keeps the existing entry when
// an action is already pending.
func (s *Scheduler) Schedule(action Action, fireAt float64) bool {
	if s == nil || s.armed {
		return false
	}
	//1.- Record the action and the simulated time at which it becomes due.
	s.armed = true
	s.action = action
	s.fireAt = fireAt
	return true
}

// Cancel discards any pending action.
func (s *Scheduler) Cancel() {
	if s == nil {
		return
	}
	s.armed = false
	s.action = ""
	s.fireAt = 0
}

// Pending reports the armed action and its fire time.
func (s *Scheduler) Pending() (Action, float64, bool) {
	if s == nil || !s.armed {
		return "", 0, false
	}
	return s.action, s.fireAt, true
}

// Remaining reports how long until the pending action fires, clamped at zero.
func (s *Scheduler) Remaining(clock float64) float64 {
	if s == nil || !s.armed {
		return 0
	}
	remaining := s.fireAt - clock
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Due pops the pending action once the clock has reached its fire time. Each
// scheduled action is returned exactly once.
func (s *Scheduler) Due(clock float64) (Action, bool) {
	if s == nil || !s.armed || clock < s.fireAt {
		return "", false
	}
	//1.- Disarm before returning so a re-entrant schedule starts from a clean slot.
	action := s.action
	s.Cancel()
	return action, true
}
