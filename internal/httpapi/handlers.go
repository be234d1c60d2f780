package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/replay"
	"parkarena/broker/internal/simulation"
	"parkarena/broker/internal/telemetry"
)

// ReadinessProvider exposes host state required for readiness checks.
type ReadinessProvider interface {
	Clients() int
	StartupError() error
	Uptime() time.Duration
}

// ReplayFlusher forces the active replay bundle to disk and returns its location.
type ReplayFlusher interface {
	Flush() (string, error)
}

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet. Nil sources are omitted from the output.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Session     func() match.Snapshot
	Totals      func() telemetry.Totals
	Ticks       func() simulation.TickStats
	Drops       func() map[string]input.DropCounters
	Drift       func() map[string]int64
	Replay      ReplayFlusher
	ReplayStats func() replay.Stats
	Storage     func() replay.StorageStats
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the host's operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	session     func() match.Snapshot
	totals      func() telemetry.Totals
	ticks       func() simulation.TickStats
	drops       func() map[string]input.DropCounters
	drift       func() map[string]int64
	replay      ReplayFlusher
	replayStats func() replay.Stats
	storage     func() replay.StorageStats
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		session:     opts.Session,
		totals:      opts.Totals,
		ticks:       opts.Ticks,
		drops:       opts.Drops,
		drift:       opts.Drift,
		replay:      opts.Replay,
		replayStats: opts.ReplayStats,
		storage:     opts.Storage,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/session", h.SessionHandler())
	mux.HandleFunc("/replay/flush", h.ReplayFlushHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports whether the loop started and how many clients are attached.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Clients       int     `json:"clients"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			resp.Clients = h.readiness.Clients()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// SessionHandler returns the most recent session snapshot.
func (h *HandlerSet) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.session == nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, h.session())
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if h.readiness != nil {
			gauge(w, "parkarena_uptime_seconds", "Host uptime in seconds.", fmt.Sprintf("%.0f", h.readiness.Uptime().Seconds()))
			gauge(w, "parkarena_clients", "Current connected WebSocket clients.", fmt.Sprintf("%d", h.readiness.Clients()))
		}
		if h.totals != nil {
			totals := h.totals()
			counter(w, "parkarena_ticks_total", "Simulation steps executed.", totals.Ticks)
			counter(w, "parkarena_crashes_total", "Attempts that ended in a crash.", totals.Crashes)
			counter(w, "parkarena_successes_total", "Attempts that ended parked or landed.", totals.Successes)
			counter(w, "parkarena_resets_total", "Session resets.", totals.Resets)
			counter(w, "parkarena_too_fast_total", "Landing approaches flagged as too fast.", totals.TooFast)
			gauge(w, "parkarena_last_tick_seconds", "Wall time spent in the last simulation step.", fmt.Sprintf("%g", totals.LastTickSeconds))
		}
		if h.ticks != nil {
			stats := h.ticks()
			gauge(w, "parkarena_tick_average_seconds", "Mean wall time per simulation step.", fmt.Sprintf("%g", stats.Average.Seconds()))
			gauge(w, "parkarena_tick_max_seconds", "Slowest simulation step observed.", fmt.Sprintf("%g", stats.Max.Seconds()))
			gauge(w, "parkarena_fps", "Frame rate the mean step cost would sustain.", fmt.Sprintf("%.2f", stats.AverageFPS()))
		}
		if h.drops != nil {
			h.writeDrops(w, h.drops())
		}
		if h.drift != nil {
			writeDrift(w, h.drift())
		}
		if h.replayStats != nil {
			stats := h.replayStats()
			counter(w, "parkarena_replay_frames_total", "Frames captured into the replay bundle.", uint64(stats.Frames))
			counter(w, "parkarena_replay_events_total", "Events captured into the replay bundle.", uint64(stats.Events))
			counter(w, "parkarena_replay_failures_total", "Replay write failures.", uint64(stats.Failures))
		}
		if h.storage != nil {
			stats := h.storage()
			gauge(w, "parkarena_replay_bundles", "Replay bundles retained on disk.", fmt.Sprintf("%d", stats.Bundles))
			gauge(w, "parkarena_replay_bytes", "Disk footprint of retained replay bundles.", fmt.Sprintf("%d", stats.Bytes))
		}
	}
}

func (h *HandlerSet) writeDrops(w io.Writer, drops map[string]input.DropCounters) {
	fmt.Fprintf(w, "# HELP parkarena_input_dropped_total Input frames dropped per client and reason.\n")
	fmt.Fprintf(w, "# TYPE parkarena_input_dropped_total counter\n")
	clients := make([]string, 0, len(drops))
	for clientID := range drops {
		clients = append(clients, clientID)
	}
	sort.Strings(clients)
	for _, clientID := range clients {
		counters := drops[clientID]
		for _, entry := range []struct {
			reason input.DropReason
			count  uint64
		}{
			{input.DropReasonSequence, counters.Sequence},
			{input.DropReasonStale, counters.Stale},
			{input.DropReasonRateLimited, counters.RateLimited},
		} {
			fmt.Fprintf(w, "parkarena_input_dropped_total{client=%q,reason=%q} %d\n", clientID, entry.reason, entry.count)
		}
	}
}

func writeDrift(w io.Writer, drift map[string]int64) {
	fmt.Fprintf(w, "# HELP parkarena_client_clock_drift_ms Last observed lag between a client's frame timestamp and the host clock.\n")
	fmt.Fprintf(w, "# TYPE parkarena_client_clock_drift_ms gauge\n")
	clients := make([]string, 0, len(drift))
	for clientID := range drift {
		clients = append(clients, clientID)
	}
	sort.Strings(clients)
	for _, clientID := range clients {
		fmt.Fprintf(w, "parkarena_client_clock_drift_ms{client=%q} %d\n", clientID, drift[clientID])
	}
}

// ReplayFlushHandler authorises and forces the replay bundle to disk.
func (h *HandlerSet) ReplayFlushHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "replay_flush"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("replay flush denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("replay flush denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("replay flush denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.replay == nil {
			http.Error(w, "replay capture is disabled", http.StatusServiceUnavailable)
			return
		}
		location, err := h.replay.Flush()
		if err != nil {
			reqLogger.Error("replay flush failed", logging.Error(err))
			http.Error(w, "failed to flush replay", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("replay flushed", logging.String("location", location))
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func gauge(w io.Writer, name, help, value string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %s\n", name, help, name, name, value)
}

func counter(w io.Writer, name, help string, value uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
