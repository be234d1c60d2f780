package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/replay"
	"parkarena/broker/internal/simulation"
	"parkarena/broker/internal/telemetry"
)

type stubReadiness struct {
	clients int
	uptime  time.Duration
	err     error
}

func (s *stubReadiness) Clients() int          { return s.clients }
func (s *stubReadiness) StartupError() error   { return s.err }
func (s *stubReadiness) Uptime() time.Duration { return s.uptime }

type stubLimiter struct {
	remaining int
}

func (s *stubLimiter) Allow() bool {
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}

type stubFlusher struct {
	location string
	err      error
	calls    int
}

func (s *stubFlusher) Flush() (string, error) {
	s.calls++
	return s.location, s.err
}

func TestLivenessHandlerReturnsJSON(t *testing.T) {
	fixed := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), TimeSource: func() time.Time { return fixed }})
	rr := httptest.NewRecorder()
	handlers.LivenessHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "alive" || payload.Timestamp != fixed.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestReadinessHandlerUnavailable(t *testing.T) {
	readiness := &stubReadiness{clients: 3, uptime: 45 * time.Second, err: errors.New("loop not running")}
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), Readiness: readiness})

	rr := httptest.NewRecorder()
	handlers.ReadinessHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var payload struct {
		Status        string  `json:"status"`
		Message       string  `json:"message"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Clients       int     `json:"clients"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "error" || payload.Message != "loop not running" || payload.Clients != 3 || payload.UptimeSeconds != 45 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSessionHandlerServesSnapshot(t *testing.T) {
	best := 12.3
	handlers := NewHandlerSet(Options{Session: func() match.Snapshot {
		return match.Snapshot{Tick: 42, Phase: match.PhaseSucceeded, Best: &best, Message: match.MessagePerfectParking}
	}})
	rr := httptest.NewRecorder()
	handlers.SessionHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snapshot match.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Tick != 42 || snapshot.Phase != match.PhaseSucceeded || snapshot.Best == nil || *snapshot.Best != 12.3 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	rr = httptest.NewRecorder()
	handlers.SessionHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/session", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	NewHandlerSet(Options{}).SessionHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a session, got %d", rr.Code)
	}
}

func TestMetricsHandlerOutputsPrometheusFormat(t *testing.T) {
	handlers := NewHandlerSet(Options{
		Logger:    logging.NewTestLogger(),
		Readiness: &stubReadiness{clients: 2, uptime: 90 * time.Second},
		Totals: func() telemetry.Totals {
			return telemetry.Totals{Ticks: 600, Crashes: 3, Successes: 1}
		},
		Ticks: func() simulation.TickStats {
			return simulation.TickStats{Samples: 2, Average: 2 * time.Millisecond, Max: 3 * time.Millisecond}
		},
		Drops: func() map[string]input.DropCounters {
			return map[string]input.DropCounters{"c1": {Sequence: 4}}
		},
		Drift:       func() map[string]int64 { return map[string]int64{"c1": 35} },
		ReplayStats: func() replay.Stats { return replay.Stats{Frames: 10, Events: 2} },
		Storage:     func() replay.StorageStats { return replay.StorageStats{Bundles: 3, Bytes: 2048} },
	})

	rr := httptest.NewRecorder()
	handlers.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rr.Header().Get("Content-Type"); got != "text/plain; version=0.0.4" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rr.Body.String()
	for _, substr := range []string{
		"parkarena_uptime_seconds 90",
		"parkarena_clients 2",
		"parkarena_ticks_total 600",
		"parkarena_crashes_total 3",
		"parkarena_successes_total 1",
		"parkarena_fps 500.00",
		`parkarena_input_dropped_total{client="c1",reason="sequence"} 4`,
		`parkarena_client_clock_drift_ms{client="c1"} 35`,
		"parkarena_replay_frames_total 10",
		"parkarena_replay_bundles 3",
		"parkarena_replay_bytes 2048",
	} {
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics missing %q:\n%s", substr, body)
		}
	}
}

func TestReplayFlushHandlerAuthAndRateLimits(t *testing.T) {
	flusher := &stubFlusher{location: "/tmp/replays/session-1"}
	handlers := NewHandlerSet(Options{
		Logger:      logging.NewTestLogger(),
		Replay:      flusher,
		AdminToken:  "topsecret",
		RateLimiter: &stubLimiter{remaining: 1},
	})

	makeRequest := func(method, token string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/replay/flush", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		handlers.ReplayFlushHandler().ServeHTTP(rr, req)
		return rr
	}

	if resp := makeRequest(http.MethodGet, "topsecret"); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp.Code)
	}
	if resp := makeRequest(http.MethodPost, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for missing token, got %d", resp.Code)
	}
	if resp := makeRequest(http.MethodPost, "topsecret"); resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for authorised request, got %d", resp.Code)
	}
	if flusher.calls != 1 {
		t.Fatalf("expected flusher invoked once, got %d", flusher.calls)
	}
	if resp := makeRequest(http.MethodPost, "topsecret"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", resp.Code)
	}
}

func TestReplayFlushHandlerRequiresAdminToken(t *testing.T) {
	handlers := NewHandlerSet(Options{Replay: &stubFlusher{}})
	rr := httptest.NewRecorder()
	handlers.ReplayFlushHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/replay/flush", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without admin token, got %d", rr.Code)
	}
}
