package input

import (
	"sync"
	"time"

	"parkarena/broker/internal/logging"
)

// ViolationReason identifies why a client frame was refused before reaching the session.
type ViolationReason string

const (
	ViolationNone           ViolationReason = ""
	ViolationMalformed      ViolationReason = "malformed"
	ViolationUnknownControl ViolationReason = "unknown_control"
	ViolationUnknownCommand ViolationReason = "unknown_command"
	ViolationCommandFlood   ViolationReason = "command_flood"
	ViolationCooldown       ViolationReason = "cooldown_active"
)

// Penalties configures how repeated violations escalate.
type Penalties struct {
	BurstLimit  int
	BurstWindow time.Duration
	Cooldown    time.Duration
	MaxStrikes  int
}

// DefaultPenalties is the baseline escalation policy.
var DefaultPenalties = Penalties{
	BurstLimit:  5,
	BurstWindow: time.Second,
	Cooldown:    500 * time.Millisecond,
	MaxStrikes:  3,
}

// Verdict summarises the consequence of a violation.
type Verdict struct {
	Reason     ViolationReason
	Warn       bool
	Cooldown   time.Duration
	Disconnect bool
}

// ViolationCounters aggregates per-client statistics.
type ViolationCounters struct {
	Violations  map[ViolationReason]uint64 `json:"violations,omitempty"`
	Cooldowns   uint64                     `json:"cooldowns"`
	Disconnects uint64                     `json:"disconnects"`
}

type offenderState struct {
	firstInvalid  time.Time
	invalidCount  int
	cooldownUntil time.Time
	strikes       int
}

// Validator escalates repeated bad frames into cooldowns and, eventually, disconnects.
type Validator struct {
	mu       sync.Mutex
	cfg      Penalties
	clock    Clock
	logger   *logging.Logger
	clients  map[string]*offenderState
	counters map[string]ViolationCounters
}

// ValidatorOption customises validator construction.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the clock used for cooldown windows.
func WithValidatorClock(clock Clock) ValidatorOption {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// NewValidator builds a validator; zero fields fall back to DefaultPenalties.
func NewValidator(cfg Penalties, logger *logging.Logger, opts ...ValidatorOption) *Validator {
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = DefaultPenalties.BurstLimit
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = DefaultPenalties.BurstWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultPenalties.Cooldown
	}
	if cfg.MaxStrikes <= 0 {
		cfg.MaxStrikes = DefaultPenalties.MaxStrikes
	}
	v := &Validator{
		cfg:      cfg,
		clock:    systemClock{},
		logger:   logger,
		clients:  make(map[string]*offenderState),
		counters: make(map[string]ViolationCounters),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Admit reports whether the client is outside any active cooldown.
func (v *Validator) Admit(clientID string) (bool, time.Duration) {
	if v == nil {
		return true, 0
	}
	now := v.clock.Now()
	v.mu.Lock()
	defer v.mu.Unlock()
	state := v.clients[clientID]
	if state == nil || state.cooldownUntil.IsZero() || !now.Before(state.cooldownUntil) {
		return true, 0
	}
	return false, state.cooldownUntil.Sub(now)
}

// Record registers a violation and returns its escalation.
func (v *Validator) Record(clientID string, reason ViolationReason) Verdict {
	if v == nil || reason == ViolationNone {
		return Verdict{Reason: reason}
	}
	now := v.clock.Now()
	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.clients[clientID]
	if state == nil {
		state = &offenderState{}
		v.clients[clientID] = state
	}
	counters := v.counters[clientID]
	if counters.Violations == nil {
		counters.Violations = make(map[ViolationReason]uint64)
	}
	counters.Violations[reason]++

	//1.- Count violations inside a rolling burst window.
	if state.invalidCount == 0 || now.Sub(state.firstInvalid) > v.cfg.BurstWindow {
		state.firstInvalid = now
		state.invalidCount = 1
	} else {
		state.invalidCount++
	}
	verdict := Verdict{Reason: reason, Warn: v.cfg.BurstLimit-state.invalidCount == 1}

	//2.- A full burst earns a cooldown; repeated cooldowns disconnect the client.
	if state.invalidCount >= v.cfg.BurstLimit {
		state.cooldownUntil = now.Add(v.cfg.Cooldown)
		state.invalidCount = 0
		state.firstInvalid = time.Time{}
		state.strikes++
		counters.Cooldowns++
		verdict.Cooldown = v.cfg.Cooldown
		if state.strikes >= v.cfg.MaxStrikes {
			verdict.Disconnect = true
			counters.Disconnects++
		}
		v.logger.Debug("client cooldown",
			logging.String("client_id", clientID),
			logging.String("reason", string(reason)),
			logging.Int("strikes", state.strikes),
			logging.Duration("cooldown", v.cfg.Cooldown),
		)
	}
	v.counters[clientID] = counters
	return verdict
}

// Forget clears all state for a client.
func (v *Validator) Forget(clientID string) {
	if v == nil {
		return
	}
	v.mu.Lock()
	delete(v.clients, clientID)
	delete(v.counters, clientID)
	v.mu.Unlock()
}

// Metrics returns a deep copy of the per-client counters.
func (v *Validator) Metrics() map[string]ViolationCounters {
	if v == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.counters) == 0 {
		return nil
	}
	snapshot := make(map[string]ViolationCounters, len(v.counters))
	for clientID, counters := range v.counters {
		clone := ViolationCounters{Cooldowns: counters.Cooldowns, Disconnects: counters.Disconnects}
		if len(counters.Violations) > 0 {
			clone.Violations = make(map[ViolationReason]uint64, len(counters.Violations))
			for reason, count := range counters.Violations {
				clone.Violations[reason] = count
			}
		}
		snapshot[clientID] = clone
	}
	return snapshot
}
