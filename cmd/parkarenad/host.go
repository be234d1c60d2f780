package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"parkarena/broker/internal/auth"
	"parkarena/broker/internal/config"
	"parkarena/broker/internal/events"
	"parkarena/broker/internal/httpapi"
	"parkarena/broker/internal/hub"
	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/replay"
	"parkarena/broker/internal/rpc"
	"parkarena/broker/internal/simulation"
	"parkarena/broker/internal/telemetry"
	"parkarena/broker/internal/timesync"
)

const shutdownGrace = 5 * time.Second

// host owns every long-running component of the arena daemon.
type host struct {
	cfg     *config.Config
	logger  *logging.Logger
	started time.Time

	recorder *telemetry.Recorder
	driver   *simulation.Driver
	loop     *simulation.Loop
	hub      *hub.Hub
	gate     *input.Gate
	clocks   *timesync.Service
	replay   *replay.Recorder
	cleaner  *replay.Cleaner
	health   *rpc.Server
	server   *http.Server

	mu         sync.Mutex
	startupErr error
}

// newHost assembles the session, the loop and every host surface from cfg.
func newHost(cfg *config.Config, logger *logging.Logger) (*host, error) {
	h := &host{cfg: cfg, logger: logger, started: time.Now()}

	//1.- Telemetry observes session events and loop timings.
	recorder, err := telemetry.New(nil)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	h.recorder = recorder

	//2.- Build the session from configuration; the driver becomes its only writer.
	opts, err := simulation.SessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, match.WithObserver(recorder))
	session := match.NewSession(opts...)

	//3.- Remote surfaces: gate and validator guard input, the signer separates drivers from spectators.
	h.gate = input.NewGate(input.Config{MaxAge: cfg.Input.MaxAge, MinInterval: cfg.Input.MinInterval}, logger)
	hubOpts := []hub.Option{
		hub.WithGate(h.gate),
		hub.WithValidator(input.NewValidator(input.DefaultPenalties, logger)),
		hub.WithRecorder(recorder),
		hub.WithAllowedOrigins(cfg.AllowedOrigins),
		hub.WithMaxClients(cfg.MaxClients),
		hub.WithMaxPayload(cfg.MaxPayloadBytes),
		hub.WithPingInterval(cfg.PingInterval),
		hub.WithCommandLimit(cfg.Input.CommandWindow, cfg.Input.CommandBurst),
	}
	if cfg.DriverSecret != "" {
		signer, err := auth.NewSigner(cfg.DriverSecret, time.Second)
		if err != nil {
			return nil, fmt.Errorf("driver tokens: %w", err)
		}
		hubOpts = append(hubOpts, hub.WithSigner(signer))
	}

	controls := &input.Slot{}
	driverOpts := []simulation.DriverOption{
		simulation.WithRecorder(recorder),
		simulation.WithBroadcastEvery(broadcastEvery(cfg.TickHz, cfg.BroadcastHz)),
	}

	//4.- Replay capture records the same stream the hub broadcasts.
	if cfg.Replay.Enabled {
		params := replay.ArenaParametersFromLayout(session.Layout())
		h.replay, err = replay.NewRecorder(cfg.Replay.Directory, "parkarena", session.Seed(), params, logger.With(logging.String("component", "replay")), nil)
		if err != nil {
			return nil, err
		}
		driverOpts = append(driverOpts, simulation.WithSink(h.replay))
		h.cleaner = replay.NewCleaner(cfg.Replay.Directory, replay.RetentionPolicy{MaxBundles: cfg.Replay.MaxBundles, MaxAge: cfg.Replay.MaxAge}, logger)
		h.cleaner.Protect(h.replay.Snapshot().Directory)
	}

	//5.- The hub needs the driver and the driver publishes to the hub, so the sink is attached through a forwarder.
	fanout := &hubSink{}
	driverOpts = append(driverOpts, simulation.WithSink(fanout))
	h.driver = simulation.NewDriver(session, controls, logger.With(logging.String("component", "driver")), driverOpts...)
	h.clocks = timesync.NewService(func() float64 { return h.driver.Latest().Clock })
	hubOpts = append(hubOpts,
		hub.WithJournal(events.NewJournal(events.Config{Retain: cfg.EventRetention})),
		hub.WithTimeSync(h.clocks, cfg.TimeSyncInterval),
	)
	h.hub = hub.New(h.driver, logger.With(logging.String("component", "hub")), hubOpts...)
	fanout.hub = h.hub
	h.loop = simulation.NewLoop(cfg.TickHz, h.driver.Step)

	h.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.GRPCAddr != "" {
		h.health = rpc.NewServer(cfg.GRPCSharedSecret, logger.With(logging.String("component", "grpc")))
	}
	return h, nil
}

func (h *host) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h.hub)
	apiOpts := httpapi.Options{
		Logger:     h.logger.With(logging.String("component", "http")),
		Readiness:  h,
		Session:    h.driver.Latest,
		Totals:     h.recorder.Totals,
		Ticks:      h.loop.Monitor().Snapshot,
		Drops:      h.gate.Metrics,
		Drift:      h.clocks.Drift,
		AdminToken: h.cfg.AdminToken,
		RateLimiter: input.NewSlidingWindowLimiter(
			h.cfg.Replay.FlushWindow, h.cfg.Replay.FlushBurst, nil,
		),
	}
	if h.replay != nil {
		apiOpts.Replay = h.replay
		apiOpts.ReplayStats = h.replay.Snapshot
		apiOpts.Storage = h.cleaner.Stats
	}
	httpapi.NewHandlerSet(apiOpts).Register(mux)
	return logging.HTTPTraceMiddleware(h.logger)(mux)
}

// run starts every component and blocks until ctx is cancelled or a listener fails.
func (h *host) run(ctx context.Context) error {
	errs := make(chan error, 2)

	listener, err := net.Listen("tcp", h.cfg.Address)
	if err != nil {
		h.setStartupError(err)
		return fmt.Errorf("listen %s: %w", h.cfg.Address, err)
	}
	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	h.logger.Info("arena host listening",
		logging.String("url", listenerURL("http", h.cfg.Address)),
		logging.String("websocket", listenerURL("ws", h.cfg.Address)+"/ws"),
	)

	if h.health != nil {
		grpcListener, err := net.Listen("tcp", h.cfg.GRPCAddr)
		if err != nil {
			h.setStartupError(err)
			h.shutdown()
			return fmt.Errorf("listen %s: %w", h.cfg.GRPCAddr, err)
		}
		go func() {
			if err := h.health.Serve(grpcListener); err != nil {
				errs <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	//1.- The loop starts last so every surface is ready for its first broadcast.
	h.loop.Start(ctx)
	h.health.SetServing(true)
	if h.cleaner != nil {
		go h.cleaner.Run(ctx, h.cfg.Replay.SweepInterval)
	}

	select {
	case <-ctx.Done():
		h.shutdown()
		return nil
	case err := <-errs:
		h.setStartupError(err)
		h.shutdown()
		return err
	}
}

// shutdown stops the loop before the surfaces so the final snapshot is flushed.
func (h *host) shutdown() {
	h.health.SetServing(false)
	h.loop.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Warn("http shutdown failed", logging.Error(err))
	}
	h.hub.Close()
	h.health.Stop()
	if h.replay != nil {
		if err := h.replay.Close(); err != nil {
			h.logger.Warn("replay close failed", logging.Error(err))
		}
	}
}

// Clients reports connected WebSocket clients.
func (h *host) Clients() int { return h.hub.Clients() }

// StartupError reports the first fatal listener error.
func (h *host) StartupError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startupErr
}

// Uptime reports how long the host has been running.
func (h *host) Uptime() time.Duration { return time.Since(h.started) }

func (h *host) setStartupError(err error) {
	h.mu.Lock()
	if h.startupErr == nil {
		h.startupErr = err
	}
	h.mu.Unlock()
}

// hubSink forwards driver output to the hub once it exists.
type hubSink struct {
	hub *hub.Hub
}

func (s *hubSink) PublishSnapshot(snapshot match.Snapshot) {
	if s.hub != nil {
		s.hub.PublishSnapshot(snapshot)
	}
}

func (s *hubSink) PublishEvents(events []match.Event) {
	if s.hub != nil {
		s.hub.PublishEvents(events)
	}
}

// broadcastEvery converts the broadcast rate into a step divisor.
func broadcastEvery(tickHz, broadcastHz float64) int {
	if tickHz <= 0 || broadcastHz <= 0 || broadcastHz >= tickHz {
		return 1
	}
	return int(math.Round(tickHz / broadcastHz))
}
