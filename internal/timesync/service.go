// Package timesync offers clock samples to clients and tracks how far their
// frame timestamps drift from the host clock.
package timesync

import (
	"context"
	"sync"
	"time"
)

// Sample is one clock reading handed to a client.
type Sample struct {
	ServerMs  int64 `json:"server_ms"`
	SessionMs int64 `json:"session_ms"`
	// OffsetMs is the lag between wall time and the session clock.
	OffsetMs int64 `json:"offset_ms"`
}

// Service produces samples and records per-client drift.
type Service struct {
	now     func() time.Time
	session func() float64
	started time.Time

	mu    sync.Mutex
	drift map[string]int64
}

// Option customises service construction.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewService builds a service reading the session clock in seconds from sessionClock.
func NewService(sessionClock func() float64, opts ...Option) *Service {
	s := &Service{now: time.Now, session: sessionClock, drift: make(map[string]int64)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.started = s.now()
	return s
}

// Sample reads both clocks.
func (s *Service) Sample() Sample {
	if s == nil {
		return Sample{}
	}
	now := s.now()
	var sessionMs int64
	if s.session != nil {
		sessionMs = int64(s.session()*1000 + 0.5)
	}
	return Sample{
		ServerMs:  now.UnixMilli(),
		SessionMs: sessionMs,
		OffsetMs:  now.Sub(s.started).Milliseconds() - sessionMs,
	}
}

// Stream sends a sample immediately and then every interval until ctx ends or send fails.
func (s *Service) Stream(ctx context.Context, interval time.Duration, send func(Sample) error) error {
	if s == nil || send == nil {
		return nil
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	//1.- Emit an initial sample immediately to minimise startup skew.
	if err := send(s.Sample()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := send(s.Sample()); err != nil {
				return err
			}
		}
	}
}

// Observe records how far a client's frame timestamp trails the host clock.
func (s *Service) Observe(clientID string, sentAt time.Time) int64 {
	if s == nil || clientID == "" || sentAt.IsZero() {
		return 0
	}
	drift := s.now().Sub(sentAt).Milliseconds()
	s.mu.Lock()
	s.drift[clientID] = drift
	s.mu.Unlock()
	return drift
}

// Forget drops a disconnected client's drift.
func (s *Service) Forget(clientID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.drift, clientID)
	s.mu.Unlock()
}

// Drift returns the last observed drift per client in milliseconds.
func (s *Service) Drift() map[string]int64 {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.drift))
	for id, drift := range s.drift {
		out[id] = drift
	}
	return out
}
