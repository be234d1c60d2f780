package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parkarena/broker/internal/config"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Replay.Enabled = true
	cfg.Replay.Directory = t.TempDir()
	return cfg
}

func TestBroadcastEvery(t *testing.T) {
	cases := []struct {
		tick, broadcast float64
		want            int
	}{
		{60, 20, 3},
		{60, 60, 1},
		{60, 120, 1},
		{50, 0, 1},
		{60, 25, 2},
	}
	for _, tc := range cases {
		if got := broadcastEvery(tc.tick, tc.broadcast); got != tc.want {
			t.Fatalf("broadcastEvery(%v, %v) = %d, want %d", tc.tick, tc.broadcast, got, tc.want)
		}
	}
}

func TestHostServesSessionAndReadiness(t *testing.T) {
	cfg := testConfig(t)
	h, err := newHost(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("newHost: %v", err)
	}
	t.Cleanup(func() { h.replay.Close() })

	server := httptest.NewServer(h.routes())
	t.Cleanup(server.Close)

	for i := 0; i < broadcastEvery(cfg.TickHz, cfg.BroadcastHz); i++ {
		h.driver.Step(time.Second / 60)
	}
	steps := uint64(broadcastEvery(cfg.TickHz, cfg.BroadcastHz))
	resp, err := http.Get(server.URL + "/session")
	if err != nil {
		t.Fatalf("GET /session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snapshot match.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.Tick != steps {
		t.Fatalf("expected the stepped snapshot, got tick %d", snapshot.Tick)
	}

	ready, err := http.Get(server.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	ready.Body.Close()
	if ready.StatusCode != http.StatusOK {
		t.Fatalf("expected ready host, got %d", ready.StatusCode)
	}
	if stats := h.replay.Snapshot(); stats.Frames == 0 {
		t.Fatalf("expected the replay recorder to capture the stepped frame, got %+v", stats)
	}
}

func TestHostRejectsUnknownVehicle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Vehicle = "boat"
	if _, err := newHost(cfg, logging.NewTestLogger()); err == nil {
		t.Fatal("expected an unknown vehicle to fail host construction")
	}
}
