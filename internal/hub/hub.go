// Package hub fans session output out to WebSocket clients and funnels their
// input frames and commands back to the simulation loop.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parkarena/broker/internal/auth"
	"parkarena/broker/internal/events"
	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/telemetry"
	"parkarena/broker/internal/timesync"
)

const (
	defaultSendBuffer   = 256
	defaultPingInterval = 30 * time.Second
	defaultMaxPayload   = 64 * 1024
	writeWait           = 5 * time.Second
)

// ErrDriverRequired is reported to spectators that try to steer.
var ErrDriverRequired = errors.New("driver token required")

// Session is the loop-side surface the hub feeds.
type Session interface {
	Enqueue(match.Command) error
	Controls() *input.Slot
	Latest() match.Snapshot
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	id       string
	driver   bool
	commands *input.SlidingWindowLimiter
	stop     context.CancelFunc

	// closeReason is guarded by Hub.mu; a non-empty reason ends the session with a policy close.
	closeReason string
}

// Hub tracks connected clients and bridges them to the session.
type Hub struct {
	session   Session
	logger    *logging.Logger
	gate      *input.Gate
	validator *input.Validator
	signer    *auth.Signer
	recorder  *telemetry.Recorder
	journal   *events.Journal
	clocks    *timesync.Service
	upgrader  websocket.Upgrader
	clock     func() time.Time

	origins       map[string]struct{}
	maxClients    int
	maxPayload    int64
	pingInterval  time.Duration
	commandWindow time.Duration
	commandBurst  int
	syncInterval  time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// Option customises hub construction.
type Option func(*Hub)

// WithGate installs the input frame gate.
func WithGate(gate *input.Gate) Option {
	return func(h *Hub) {
		if gate != nil {
			h.gate = gate
		}
	}
}

// WithValidator installs the violation escalation policy.
func WithValidator(validator *input.Validator) Option {
	return func(h *Hub) {
		if validator != nil {
			h.validator = validator
		}
	}
}

// WithSigner requires a valid driver token before a client may steer.
func WithSigner(signer *auth.Signer) Option {
	return func(h *Hub) {
		h.signer = signer
	}
}

// WithRecorder reports the connected client count to telemetry.
func WithRecorder(recorder *telemetry.Recorder) Option {
	return func(h *Hub) {
		h.recorder = recorder
	}
}

// WithJournal sequences events so reconnecting clients can resume with ?since=.
func WithJournal(journal *events.Journal) Option {
	return func(h *Hub) {
		h.journal = journal
	}
}

// WithTimeSync streams clock samples to every client and tracks their drift.
func WithTimeSync(service *timesync.Service, interval time.Duration) Option {
	return func(h *Hub) {
		h.clocks = service
		h.syncInterval = interval
	}
}

// WithAllowedOrigins restricts browser origins; an empty list allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				h.origins[strings.ToLower(origin)] = struct{}{}
			}
		}
	}
}

// WithMaxClients caps concurrent connections; zero means unlimited.
func WithMaxClients(limit int) Option {
	return func(h *Hub) {
		if limit >= 0 {
			h.maxClients = limit
		}
	}
}

// WithMaxPayload bounds inbound frame size.
func WithMaxPayload(limit int64) Option {
	return func(h *Hub) {
		if limit > 0 {
			h.maxPayload = limit
		}
	}
}

// WithPingInterval sets the keepalive cadence.
func WithPingInterval(interval time.Duration) Option {
	return func(h *Hub) {
		if interval > 0 {
			h.pingInterval = interval
		}
	}
}

// WithCommandLimit bounds commands per client within a sliding window.
func WithCommandLimit(window time.Duration, burst int) Option {
	return func(h *Hub) {
		h.commandWindow = window
		h.commandBurst = burst
	}
}

// WithClock overrides the clock used for command limiting.
func WithClock(clock func() time.Time) Option {
	return func(h *Hub) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// New constructs a hub bound to the session.
func New(session Session, logger *logging.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	h := &Hub{
		session:      session,
		logger:       logger,
		clock:        time.Now,
		origins:      make(map[string]struct{}),
		maxPayload:   defaultMaxPayload,
		pingInterval: defaultPingInterval,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.gate == nil {
		h.gate = input.NewGate(input.Config{}, logger)
	}
	if h.validator == nil {
		h.validator = input.NewValidator(input.DefaultPenalties, logger)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	//1.- Refuse before upgrading so the client sees a plain HTTP status.
	if h.full() {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	subject, driver, err := h.authenticate(r)
	if err != nil {
		h.logger.Warn("websocket auth rejected", logging.String("remote_addr", r.RemoteAddr), logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.String("remote_addr", r.RemoteAddr), logging.Error(err))
		return
	}

	//2.- Register the client and greet it with its identity and the latest frame.
	id := uuid.NewString()
	if subject != "" {
		id = subject + "-" + id[:8]
	}
	ctx, stop := context.WithCancel(context.Background())
	c := &client{
		conn:     conn,
		send:     make(chan []byte, defaultSendBuffer),
		id:       id,
		driver:   driver,
		commands: input.NewSlidingWindowLimiter(h.commandWindow, h.commandBurst, h.clock),
		stop:     stop,
	}
	if !h.register(c) {
		stop()
		conn.Close()
		return
	}
	h.logger.Info("client connected", logging.String("client_id", id), logging.Bool("driver", driver), logging.String("remote_addr", r.RemoteAddr))

	//3.- Resuming clients get the events they missed after the greeting.
	backlog, gap := h.backlog(r)
	hello, _ := json.Marshal(Hello{
		Type:          TypeHello,
		ClientID:      id,
		Driver:        driver,
		Controls:      input.ControlNames(),
		Commands:      commandNames,
		EventSequence: h.journal.Last(),
		HistoryGap:    gap,
	})
	h.sendTo(c, hello)
	if snapshot, err := encodeSnapshot(h.session.Latest()); err == nil {
		h.sendTo(c, snapshot)
	}
	for _, record := range backlog {
		if data, err := encodeEvent(record); err == nil {
			h.sendTo(c, data)
		}
	}

	go h.writePump(c)
	go h.readPump(c)
	if h.clocks != nil {
		go h.streamClock(ctx, c)
	}
}

// PublishSnapshot broadcasts a snapshot to every client.
func (h *Hub) PublishSnapshot(snapshot match.Snapshot) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		h.logger.Error("snapshot encode failed", logging.Error(err))
		return
	}
	h.broadcast(data)
}

// PublishEvents broadcasts each event as its own frame.
func (h *Hub) PublishEvents(batch []match.Event) {
	records := h.journal.Append(batch)
	if records == nil {
		records = make([]events.Record, len(batch))
		for i, event := range batch {
			records[i] = events.Record{Event: event}
		}
	}
	for _, record := range records {
		data, err := encodeEvent(record)
		if err != nil {
			h.logger.Error("event encode failed", logging.Error(err))
			continue
		}
		h.broadcast(data)
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	h.recorder.SetClients(0)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := strings.ToLower(strings.TrimSpace(r.Header.Get("Origin")))
	if origin == "" {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}

// authenticate returns the token subject and whether the client may drive.
func (h *Hub) authenticate(r *http.Request) (string, bool, error) {
	if h.signer == nil {
		return "", true, nil
	}
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		//1.- Tokenless clients connect as spectators.
		return "", false, nil
	}
	claims, err := h.signer.Verify(token)
	if err != nil {
		return "", false, err
	}
	return claims.Subject, true, nil
}

// backlog reads ?since= and returns the journal records newer than it.
func (h *Hub) backlog(r *http.Request) ([]events.Record, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("since"))
	if raw == "" || h.journal == nil {
		return nil, false
	}
	since, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return h.journal.Since(since)
}

func (h *Hub) streamClock(ctx context.Context, c *client) {
	_ = h.clocks.Stream(ctx, h.syncInterval, func(sample timesync.Sample) error {
		h.sendTo(c, encodeTimeSync(sample))
		return nil
	})
}

func (h *Hub) full() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxClients > 0 && len(h.clients) >= h.maxClients
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed || (h.maxClients > 0 && len(h.clients) >= h.maxClients) {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetClients(count)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		h.dropLocked(c)
	}
	count := len(h.clients)
	h.mu.Unlock()
	//1.- Release held keys and per-client state even when a broadcast already dropped the client.
	c.stop()
	h.session.Controls().Release(c.id)
	h.gate.Forget(c.id)
	h.validator.Forget(c.id)
	h.clocks.Forget(c.id)
	h.recorder.SetClients(count)
	h.logger.Info("client disconnected", logging.String("client_id", c.id), logging.Bool("dropped", !present))
}

// dropLocked removes the client and closes its send channel; callers hold h.mu.
func (h *Hub) dropLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) broadcast(data []byte) {
	var slow []*client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			//1.- A client that cannot keep up is cut loose rather than stalling the loop.
			h.dropLocked(c)
			slow = append(slow, c)
		}
	}
	count := len(h.clients)
	h.mu.Unlock()
	for _, c := range slow {
		h.logger.Warn("dropping slow client", logging.String("client_id", c.id))
		h.session.Controls().Release(c.id)
	}
	if len(slow) > 0 {
		h.recorder.SetClients(count)
	}
}

// expel queues a final error frame and marks the client for a policy close.
func (h *Hub) expel(c *client, data []byte, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	c.closeReason = reason
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) closeFrame(c *client) []byte {
	h.mu.Lock()
	reason := c.closeReason
	h.mu.Unlock()
	if reason == "" {
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	}
	return websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
}

func (h *Hub) sendTo(c *client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump only unregisters; writePump owns the connection and closes it
// after draining whatever was queued.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(h.maxPayload)
	deadline := 2 * h.pingInterval
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", logging.String("client_id", c.id), logging.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		if !h.handle(c, data) {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//1.- The send channel is closed only after the final frames were queued.
				_ = c.conn.WriteMessage(websocket.CloseMessage, h.closeFrame(c))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
