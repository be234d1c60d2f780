// Package telemetry turns session events and loop timings into OpenTelemetry
// instruments while keeping process-local totals for the ops endpoint.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"parkarena/broker/internal/match"
)

const instrumentationName = "parkarena/broker/internal/telemetry"

// Totals is a point-in-time copy of the local counters.
type Totals struct {
	Ticks           uint64  `json:"ticks"`
	Crashes         uint64  `json:"crashes"`
	Successes       uint64  `json:"successes"`
	Resets          uint64  `json:"resets"`
	TooFast         uint64  `json:"too_fast"`
	LastTickSeconds float64 `json:"last_tick_seconds"`
	Clients         int64   `json:"clients"`
}

// Recorder implements match.Observer and records loop health.
type Recorder struct {
	events     metric.Int64Counter
	crashes    metric.Int64Counter
	completion metric.Float64Histogram
	tickGauge  metric.Float64ObservableGauge
	clientsUp  metric.Int64ObservableGauge

	mu     sync.RWMutex
	totals Totals
}

// New builds the instruments on the supplied meter, or on the global meter
// provider when meter is nil (a no-op unless the host installed one).
func New(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	r := &Recorder{}

	var err error
	r.events, err = meter.Int64Counter(
		"session.events",
		metric.WithDescription("Session events by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	r.crashes, err = meter.Int64Counter(
		"session.crashes",
		metric.WithDescription("Crashes by obstacle category"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating crash counter: %w", err)
	}
	r.completion, err = meter.Float64Histogram(
		"session.completion.seconds",
		metric.WithDescription("Elapsed time of successful attempts"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completion histogram: %w", err)
	}
	r.tickGauge, err = meter.Float64ObservableGauge(
		"simulation.tick.seconds",
		metric.WithDescription("Wall time spent in the most recent tick"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick gauge: %w", err)
	}
	r.clientsUp, err = meter.Int64ObservableGauge(
		"hub.clients",
		metric.WithDescription("Connected websocket clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating clients gauge: %w", err)
	}
	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			totals := r.Totals()
			o.ObserveFloat64(r.tickGauge, totals.LastTickSeconds)
			o.ObserveInt64(r.clientsUp, totals.Clients)
			return nil
		},
		r.tickGauge, r.clientsUp,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}
	return r, nil
}

// ObserveEvent records a session event.
func (r *Recorder) ObserveEvent(event match.Event) {
	if r == nil {
		return
	}
	ctx := context.Background()
	kind := attribute.String("kind", string(event.Kind))
	vehicle := attribute.String("vehicle", event.Vehicle.String())
	r.events.Add(ctx, 1, metric.WithAttributes(kind, vehicle))

	r.mu.Lock()
	switch event.Kind {
	case match.EventCrash:
		r.totals.Crashes++
	case match.EventSuccess:
		r.totals.Successes++
	case match.EventReset:
		r.totals.Resets++
	case match.EventTooFast:
		r.totals.TooFast++
	}
	r.mu.Unlock()

	switch event.Kind {
	case match.EventCrash:
		r.crashes.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(event.Category)), vehicle))
	case match.EventSuccess:
		r.completion.Record(ctx, event.Elapsed, metric.WithAttributes(vehicle))
	}
}

// ObserveTick records the duration of one loop iteration.
func (r *Recorder) ObserveTick(duration time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.totals.Ticks++
	r.totals.LastTickSeconds = duration.Seconds()
	r.mu.Unlock()
}

// SetClients updates the connected client count.
func (r *Recorder) SetClients(count int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.totals.Clients = int64(count)
	r.mu.Unlock()
}

// Totals returns the local counters.
func (r *Recorder) Totals() Totals {
	if r == nil {
		return Totals{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totals
}
