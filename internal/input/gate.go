package input

import (
	"sync"
	"time"

	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/physics"
)

// Clock exposes the current time for gate decisions.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (c ClockFunc) Now() time.Time { return c() }

type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// Config controls the freshness and throughput checks applied to remote frames.
type Config struct {
	MaxAge      time.Duration
	MinInterval time.Duration
}

// DropReason enumerates why a frame was rejected.
type DropReason string

const (
	DropReasonNone        DropReason = ""
	DropReasonSequence    DropReason = "sequence"
	DropReasonStale       DropReason = "stale"
	DropReasonRateLimited DropReason = "rate_limit"
)

// String returns the textual representation of the drop reason.
func (r DropReason) String() string { return string(r) }

// Decision summarises whether a frame passed the gate.
type Decision struct {
	Accepted bool
	Reason   DropReason
	Delay    time.Duration
}

// Frame is one remote input snapshot with its sequencing metadata.
type Frame struct {
	ClientID   string
	SequenceID uint64
	SentAt     time.Time
	Controls   physics.Controls
}

type clientState struct {
	lastSequence uint64
	lastAccepted time.Time
}

// DropCounters aggregates per-reason drop counts.
type DropCounters struct {
	Sequence    uint64 `json:"sequence"`
	Stale       uint64 `json:"stale"`
	RateLimited uint64 `json:"rate_limited"`
}

// Total sums every drop reason.
func (d DropCounters) Total() uint64 {
	return d.Sequence + d.Stale + d.RateLimited
}

// Gate rejects out-of-order, stale and flooding input frames per client.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	logger  *logging.Logger
	clients map[string]*clientState
	drops   map[string]DropCounters
}

// Option customises gate construction.
type Option func(*Gate)

// WithClock overrides the clock used for latency calculations.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGate constructs a gate with the supplied configuration and logger.
func NewGate(cfg Config, logger *logging.Logger, opts ...Option) *Gate {
	//1.- Negative windows disable the corresponding checks.
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	gate := &Gate{
		cfg:     cfg,
		clock:   systemClock{},
		logger:  logger,
		clients: make(map[string]*clientState),
		drops:   make(map[string]DropCounters),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// Evaluate applies the sequencing, freshness and rate checks to the frame.
func (g *Gate) Evaluate(frame Frame) Decision {
	decision := Decision{Accepted: true}
	if g == nil || frame.ClientID == "" {
		return decision
	}
	now := g.clock.Now()
	if !frame.SentAt.IsZero() {
		//1.- Capture-to-arrival delay; client clocks running ahead count as zero.
		if delay := now.Sub(frame.SentAt); delay > 0 {
			decision.Delay = delay
		}
	}

	g.mu.Lock()
	state := g.clients[frame.ClientID]
	if state == nil {
		state = &clientState{}
		g.clients[frame.ClientID] = state
	}
	reason := g.checkLocked(state, frame, now, decision.Delay)
	if reason == DropReasonNone {
		//2.- Promote the frame as the newest accepted snapshot.
		state.lastSequence = frame.SequenceID
		state.lastAccepted = now
	} else {
		counters := g.drops[frame.ClientID]
		switch reason {
		case DropReasonSequence:
			counters.Sequence++
		case DropReasonStale:
			counters.Stale++
		case DropReasonRateLimited:
			counters.RateLimited++
		}
		g.drops[frame.ClientID] = counters
	}
	g.mu.Unlock()

	if reason != DropReasonNone {
		decision.Accepted = false
		decision.Reason = reason
		g.logger.Debug("input frame dropped",
			logging.String("client_id", frame.ClientID),
			logging.Uint64("sequence_id", frame.SequenceID),
			logging.String("reason", reason.String()),
			logging.Duration("delay", decision.Delay),
		)
	}
	return decision
}

func (g *Gate) checkLocked(state *clientState, frame Frame, now time.Time, delay time.Duration) DropReason {
	switch {
	case frame.SequenceID == 0:
		return DropReasonSequence
	case state.lastSequence == 0:
		//1.- The first frame from a client seeds its baseline.
		return DropReasonNone
	case frame.SequenceID <= state.lastSequence:
		return DropReasonSequence
	}
	if g.cfg.MinInterval > 0 && now.Sub(state.lastAccepted) < g.cfg.MinInterval {
		return DropReasonRateLimited
	}
	if g.cfg.MaxAge > 0 && delay > g.cfg.MaxAge {
		return DropReasonStale
	}
	return DropReasonNone
}

// Forget clears sequencing state and counters for a disconnected client.
func (g *Gate) Forget(clientID string) {
	if g == nil || clientID == "" {
		return
	}
	g.mu.Lock()
	delete(g.clients, clientID)
	delete(g.drops, clientID)
	g.mu.Unlock()
}

// Metrics returns a copy of the per-client drop counters.
func (g *Gate) Metrics() map[string]DropCounters {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.drops) == 0 {
		return nil
	}
	clone := make(map[string]DropCounters, len(g.drops))
	for clientID, counters := range g.drops {
		clone[clientID] = counters
	}
	return clone
}
