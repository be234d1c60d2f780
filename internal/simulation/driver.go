package simulation

import (
	"errors"
	"sync"
	"time"

	"parkarena/broker/internal/input"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/telemetry"
)

// ErrCommandQueueFull is returned when commands arrive faster than the loop drains them.
var ErrCommandQueueFull = errors.New("command queue full")

const defaultCommandBuffer = 32

// Sink receives the driver's observable output on the loop goroutine.
type Sink interface {
	PublishSnapshot(match.Snapshot)
	PublishEvents([]match.Event)
}

// Driver binds a session to the fixed-step loop. It is the session's only
// writer: commands and controls from other goroutines are handed over through
// a queue and a slot and applied at the start of each step.
type Driver struct {
	session  *match.Session
	controls *input.Slot
	commands chan match.Command
	logger   *logging.Logger
	recorder *telemetry.Recorder
	sinks    []Sink

	broadcastEvery uint64
	steps          uint64

	mu     sync.RWMutex
	latest match.Snapshot
}

// DriverOption customises driver construction.
type DriverOption func(*Driver)

// WithSink registers an output consumer.
func WithSink(sink Sink) DriverOption {
	return func(d *Driver) {
		if sink != nil {
			d.sinks = append(d.sinks, sink)
		}
	}
}

// WithRecorder wires tick timings into telemetry.
func WithRecorder(recorder *telemetry.Recorder) DriverOption {
	return func(d *Driver) {
		d.recorder = recorder
	}
}

// WithBroadcastEvery publishes a snapshot every n steps; events always publish immediately.
func WithBroadcastEvery(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.broadcastEvery = uint64(n)
		}
	}
}

// WithCommandBuffer sizes the command queue.
func WithCommandBuffer(size int) DriverOption {
	return func(d *Driver) {
		if size > 0 {
			d.commands = make(chan match.Command, size)
		}
	}
}

// NewDriver constructs a driver around an existing session.
func NewDriver(session *match.Session, controls *input.Slot, logger *logging.Logger, opts ...DriverOption) *Driver {
	if controls == nil {
		controls = &input.Slot{}
	}
	d := &Driver{
		session:        session,
		controls:       controls,
		commands:       make(chan match.Command, defaultCommandBuffer),
		logger:         logger,
		broadcastEvery: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.latest = session.Snapshot()
	return d
}

// Enqueue hands a command to the loop without blocking.
func (d *Driver) Enqueue(command match.Command) error {
	select {
	case d.commands <- command:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Controls exposes the slot remote clients publish into.
func (d *Driver) Controls() *input.Slot {
	return d.controls
}

// Step advances the session by one fixed step. It satisfies StepFunc.
func (d *Driver) Step(step time.Duration) {
	started := time.Now()

	//1.- Apply queued commands before the frame so they act on this step.
	d.drainCommands()

	//2.- Advance with whatever controls are currently held.
	outcome := d.session.Advance(step.Seconds(), d.controls.Load())
	snapshot := d.session.Snapshot()
	d.mu.Lock()
	d.latest = snapshot
	d.mu.Unlock()
	d.steps++

	//3.- Events publish immediately; snapshots follow the broadcast cadence.
	if len(outcome.Events) > 0 {
		d.logEvents(outcome.Events)
		for _, sink := range d.sinks {
			sink.PublishEvents(outcome.Events)
		}
	}
	if len(outcome.Events) > 0 || d.steps%d.broadcastEvery == 0 {
		for _, sink := range d.sinks {
			sink.PublishSnapshot(snapshot)
		}
	}
	d.recorder.ObserveTick(time.Since(started))
}

// Latest returns the snapshot produced by the most recent step.
func (d *Driver) Latest() match.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

func (d *Driver) drainCommands() {
	for {
		select {
		case command := <-d.commands:
			if err := d.session.Apply(command); err != nil {
				d.logger.Warn("command rejected", logging.String("command", string(command)), logging.Error(err))
			}
		default:
			return
		}
	}
}

func (d *Driver) logEvents(events []match.Event) {
	for _, event := range events {
		fields := []logging.Field{
			logging.String("kind", string(event.Kind)),
			logging.String("vehicle", event.Vehicle.String()),
			logging.Uint64("tick", event.Tick),
		}
		switch event.Kind {
		case match.EventCrash:
			fields = append(fields,
				logging.String("category", string(event.Category)),
				logging.String("obstacle_id", event.ObstacleID),
				logging.Float64("elapsed", event.Elapsed),
			)
			d.logger.Info("vehicle crashed", fields...)
		case match.EventSuccess:
			fields = append(fields, logging.Float64("elapsed", event.Elapsed))
			d.logger.Info("attempt completed", fields...)
		default:
			if event.Detail != "" {
				fields = append(fields, logging.String("detail", event.Detail))
			}
			d.logger.Debug("session event", fields...)
		}
	}
}
