package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
	"parkarena/broker/internal/telemetry"
)

func TestLoopRunsAndStops(t *testing.T) {
	var ticks int32
	loop := NewLoop(120, func(time.Duration) {
		atomic.AddInt32(&ticks, 1)
	})
	loop.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	loop.Stop()
	stopped := atomic.LoadInt32(&ticks)
	if stopped == 0 {
		t.Fatalf("expected loop to tick at least once")
	}
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&ticks) != stopped {
		t.Fatal("loop kept ticking after Stop")
	}
	if samples := loop.Monitor().Snapshot().Samples; samples > int(stopped) {
		t.Fatalf("monitor saw %d samples for %d ticks", samples, stopped)
	}
}

func TestLoopStepDuration(t *testing.T) {
	loop := NewLoop(120, nil)
	if step := loop.StepDuration(); step != time.Second/120 {
		t.Fatalf("unexpected step duration %v", step)
	}
	if fallback := NewLoop(0, nil).StepDuration(); fallback != time.Second/60 {
		t.Fatalf("expected 60Hz fallback, got %v", fallback)
	}
}

func TestTickMonitorAggregates(t *testing.T) {
	monitor := NewTickMonitor()
	monitor.Observe(2 * time.Millisecond)
	monitor.Observe(4 * time.Millisecond)
	monitor.Observe(0)
	stats := monitor.Snapshot()
	if stats.Samples != 2 || stats.Average != 3*time.Millisecond || stats.Max != 4*time.Millisecond || stats.Last != 4*time.Millisecond {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if fps := stats.AverageFPS(); fps < 333 || fps > 334 {
		t.Fatalf("unexpected fps %.2f", fps)
	}
	monitor.Reset()
	if monitor.Snapshot().Samples != 0 {
		t.Fatal("expected reset to clear samples")
	}
}

type captureSink struct {
	mu        sync.Mutex
	snapshots int
	events    []match.Event
}

func (c *captureSink) PublishSnapshot(match.Snapshot) {
	c.mu.Lock()
	c.snapshots++
	c.mu.Unlock()
}

func (c *captureSink) PublishEvents(events []match.Event) {
	c.mu.Lock()
	c.events = append(c.events, events...)
	c.mu.Unlock()
}

func TestDriverAppliesCommandsAndControls(t *testing.T) {
	recorder, err := telemetry.New(nil)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	sink := &captureSink{}
	slot := &input.Slot{}
	session := match.NewSession(match.WithSeed(1), match.WithObserver(recorder))
	driver := NewDriver(session, slot, logging.NewTestLogger(), WithSink(sink), WithRecorder(recorder), WithBroadcastEvery(3))

	slot.Store("conn-1", physics.Controls{Forward: true})
	if err := driver.Enqueue(match.CommandZoomIn); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := driver.Enqueue(match.CommandCycleCameraMode); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for i := 0; i < 6; i++ {
		driver.Step(time.Second / 60)
	}

	latest := driver.Latest()
	if latest.Zoom != 1 || latest.Tick != 6 {
		t.Fatalf("expected zoom 1 at tick 6, got zoom %d tick %d", latest.Zoom, latest.Tick)
	}
	if latest.Pose.Position[2] <= -45 {
		t.Fatal("expected held forward control to move the car")
	}
	//1.- The camera event forces an extra publish on the first step.
	if sink.snapshots != 3 {
		t.Fatalf("expected 3 snapshot publishes, got %d", sink.snapshots)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != match.EventCameraMode {
		t.Fatalf("unexpected events %+v", sink.events)
	}
	if recorder.Totals().Ticks != 6 {
		t.Fatalf("expected 6 ticks recorded, got %d", recorder.Totals().Ticks)
	}
}

func TestDriverQueueBackpressure(t *testing.T) {
	driver := NewDriver(match.NewSession(), nil, nil, WithCommandBuffer(1))
	if err := driver.Enqueue(match.CommandReset); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := driver.Enqueue(match.CommandReset); err != ErrCommandQueueFull {
		t.Fatalf("expected ErrCommandQueueFull, got %v", err)
	}
}
