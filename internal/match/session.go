package match

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"parkarena/broker/internal/arena"
	"parkarena/broker/internal/camera"
	"parkarena/broker/internal/collision"
	"parkarena/broker/internal/physics"
)

const (
	// DefaultCrashDelay is how long a crash stays on screen before the reset.
	DefaultCrashDelay = 2 * time.Second
	// DefaultSuccessDelay is how long a win stays on screen before the reset.
	DefaultSuccessDelay = 3 * time.Second
	// sensorRange caps the forward clearance probe.
	sensorRange = 30.0
)

var (
	// ErrUnknownCommand is returned when a command name is not recognised.
	ErrUnknownCommand = errors.New("unknown command")
)

// Command names a discrete session mutation.
type Command string

const (
	CommandStart             Command = "start"
	CommandReset             Command = "reset"
	CommandToggleVehicleMode Command = "toggle_vehicle_mode"
	CommandCycleCameraMode   Command = "cycle_camera_mode"
	CommandZoomIn            Command = "zoom_in"
	CommandZoomOut           Command = "zoom_out"
)

// ParseCommand validates a command name.
func ParseCommand(raw string) (Command, error) {
	command := Command(strings.ToLower(strings.TrimSpace(raw)))
	switch command {
	case CommandStart, CommandReset, CommandToggleVehicleMode, CommandCycleCameraMode, CommandZoomIn, CommandZoomOut:
		return command, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
	}
}

// Snapshot is the read-only view consumed by hosts.
type Snapshot struct {
	Tick       uint64             `json:"tick"`
	Clock      float64            `json:"clock"`
	Phase      Phase              `json:"phase"`
	Started    bool               `json:"started"`
	Vehicle    physics.Kind       `json:"vehicle"`
	Pose       physics.Pose       `json:"pose"`
	Velocity   mgl64.Vec3         `json:"velocity"`
	Speed      float64            `json:"speed"`
	Elapsed    float64            `json:"elapsed"`
	Best       *float64           `json:"best"`
	Message    string             `json:"message"`
	CameraMode camera.Mode        `json:"camera_mode"`
	Zoom       int                `json:"zoom"`
	Camera     camera.Pose        `json:"camera"`
	Attempt    int                `json:"attempt"`
	Generation uint64             `json:"generation"`
	Clearance  float64            `json:"clearance"`
	ResetIn    float64            `json:"reset_in,omitempty"`
	Obstacles  []collision.Volume `json:"obstacles"`
	Boundaries []collision.Volume `json:"boundaries"`
}

// Option configures optional Session behaviour at construction time.
type Option func(*Session)

// WithVehicle selects the vehicle the session starts with.
func WithVehicle(kind physics.Kind) Option {
	return func(s *Session) {
		s.kind = kind
	}
}

// WithGroundTuning overrides the car handling.
func WithGroundTuning(tuning physics.GroundTuning) Option {
	return func(s *Session) {
		s.groundTuning = tuning
	}
}

// WithAirTuning overrides the plane handling.
func WithAirTuning(tuning physics.AirTuning) Option {
	return func(s *Session) {
		s.airTuning = tuning
	}
}

// WithLayout replaces the stock arena layout.
func WithLayout(layout arena.Layout) Option {
	return func(s *Session) {
		s.layout = layout
	}
}

// WithSeed fixes the obstacle generator seed.
func WithSeed(seed int64) Option {
	return func(s *Session) {
		s.seed = seed
	}
}

// WithDelays overrides the crash and success display windows.
func WithDelays(crash, success time.Duration) Option {
	return func(s *Session) {
		//1.- Ignore non-positive values so the defaults stay in force.
		if crash > 0 {
			s.crashDelay = crash
		}
		if success > 0 {
			s.successDelay = success
		}
	}
}

// WithZoomRange overrides the zoom clamp.
func WithZoomRange(min, max int) Option {
	return func(s *Session) {
		if min <= max {
			s.zoomMin = min
			s.zoomMax = max
		}
	}
}

// WithCameraModes overrides the camera cycle. The first entry becomes active.
func WithCameraModes(modes []camera.Mode) Option {
	return func(s *Session) {
		if len(modes) > 0 {
			s.cameraModes = append([]camera.Mode(nil), modes...)
		}
	}
}

// WithStartGate holds the session in NotStarted until Start is called.
func WithStartGate(enabled bool) Option {
	return func(s *Session) {
		s.requireStart = enabled
	}
}

// WithObserver registers a listener for every emitted event.
func WithObserver(observer Observer) Option {
	return func(s *Session) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// Session coordinates the vehicle, the arena and the camera frame by frame.
// It is owned by a single goroutine and performs no locking.
type Session struct {
	kind         physics.Kind
	groundTuning physics.GroundTuning
	airTuning    physics.AirTuning
	layout       arena.Layout
	seed         int64
	crashDelay   time.Duration
	successDelay time.Duration
	zoomMin      int
	zoomMax      int
	cameraModes  []camera.Mode
	requireStart bool
	observers    []Observer

	generator *arena.Generator
	set       *arena.Set
	vehicle   *physics.Vehicle
	scheduler Scheduler

	phase      Phase
	started    bool
	clock      float64
	tick       uint64
	elapsed    float64
	best       *float64
	message    string
	cameraMode camera.Mode
	zoom       int
	view       camera.Pose
	attempt    int
	tooFast    bool
	pending    []Event
}

// NewSession constructs a session ready to drive, or waiting for Start when
// the start gate is enabled.
func NewSession(opts ...Option) *Session {
	//1.- Seed the structure with the stock tuning, layout and timing.
	s := &Session{
		kind:         physics.KindGround,
		groundTuning: physics.DefaultGroundTuning(),
		airTuning:    physics.DefaultAirTuning(),
		layout:       arena.DefaultLayout(),
		crashDelay:   DefaultCrashDelay,
		successDelay: DefaultSuccessDelay,
		zoomMin:      camera.DefaultZoomMin,
		zoomMax:      camera.DefaultZoomMax,
		cameraModes:  camera.Modes(),
	}
	//2.- Apply the functional options to customise tuning, timing or observers.
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.generator = arena.NewGenerator(s.layout, s.seed)
	s.cameraMode = s.cameraModes[0]
	s.zoom = camera.ClampZoom(0, s.zoomMin, s.zoomMax)
	//3.- Build the first arena and park the vehicle at its spawn.
	s.rebuild()
	if s.requireStart {
		s.phase = PhaseNotStarted
	} else {
		s.started = true
		s.phase = PhaseDriving
	}
	s.view = camera.Derive(camera.Pose{}, s.cameraInput(camera.ModeLocked, 0))
	return s
}

// Advance runs one frame of dt seconds with the held controls.
func (s *Session) Advance(dt float64, controls physics.Controls) Outcome {
	if s == nil {
		return Outcome{}
	}
	//1.- Non-positive timesteps are host errors and leave every field untouched.
	if !(dt > 0) {
		return Outcome{Phase: s.phase}
	}
	s.clock += dt
	s.tick++

	if s.started {
		//2.- A due deferred reset fires before the body moves on this frame.
		if action, ok := s.scheduler.Due(s.clock); ok && action == ActionReset {
			s.reset("deferred")
		}
		if s.phase == PhaseDriving {
			s.drive(dt, controls)
		}
	}

	//3.- The camera keeps following even while the outcome is latched.
	s.view = camera.Derive(s.view, s.cameraInput(s.cameraMode, dt))
	return Outcome{Phase: s.phase, Events: s.drain()}
}

func (s *Session) drive(dt float64, controls physics.Controls) {
	s.elapsed += dt
	s.set.Advance(s.clock)
	s.vehicle.Step(controls, dt)

	//1.- Collisions are checked after the tentative move so a crash latches this frame.
	collider := s.collider()
	if hit := collision.Check(collider, s.set.Obstacles, s.set.Boundaries); hit.Hit {
		s.vehicle.Halt()
		s.latch(PhaseCrashed, MessageCrash, s.crashDelay)
		s.emit(Event{Kind: EventCrash, Category: hit.Category, ObstacleID: hit.ID, Elapsed: s.elapsed})
		return
	}

	//2.- Evaluate the win condition of the active vehicle.
	switch s.kind {
	case physics.KindAir:
		switch s.layout.Landing.Evaluate(collider, s.vehicle.Speed(), s.vehicle.Altitude()) {
		case arena.Landed:
			s.succeed(MessagePerfectLanding)
		case arena.LandingTooFast:
			s.message = MessageTooFast
			if !s.tooFast {
				s.tooFast = true
				s.emit(Event{Kind: EventTooFast, Elapsed: s.elapsed})
			}
		default:
			s.tooFast = false
		}
	default:
		if s.layout.Parking.Accepts(collider, s.vehicle.Heading) {
			s.succeed(MessagePerfectParking)
		}
	}
}

func (s *Session) succeed(message string) {
	//1.- Scores only ever improve; the first success always records.
	if s.best == nil || s.elapsed < *s.best {
		best := s.elapsed
		s.best = &best
	}
	s.vehicle.Halt()
	s.latch(PhaseSucceeded, message, s.successDelay)
	s.emit(Event{Kind: EventSuccess, Elapsed: s.elapsed, Best: s.Best(), Detail: message})
}

func (s *Session) latch(phase Phase, message string, delay time.Duration) {
	s.phase = phase
	s.message = message
	s.scheduler.Schedule(ActionReset, s.clock+delay.Seconds())
}

// Start leaves NotStarted and begins the first attempt.
func (s *Session) Start() {
	if s == nil || s.started {
		return
	}
	s.started = true
	s.emit(Event{Kind: EventStart})
	s.reset("start")
}

// Reset cancels any pending deferred action and begins a new attempt with
// freshly generated obstacles.
func (s *Session) Reset() {
	if !s.accepting() {
		return
	}
	s.reset("command")
}

// ToggleVehicleMode swaps between car and plane and resets.
func (s *Session) ToggleVehicleMode() {
	if !s.accepting() {
		return
	}
	if s.kind == physics.KindAir {
		s.kind = physics.KindGround
	} else {
		s.kind = physics.KindAir
	}
	s.emit(Event{Kind: EventVehicleMode, Detail: s.kind.String()})
	s.reset("vehicle_mode")
}

// CycleCameraMode advances to the next configured camera mode.
func (s *Session) CycleCameraMode() {
	if !s.accepting() {
		return
	}
	s.cameraMode = camera.Next(s.cameraModes, s.cameraMode)
	s.emit(Event{Kind: EventCameraMode, Detail: string(s.cameraMode)})
}

// ZoomIn raises the zoom offset by one step within the configured range.
func (s *Session) ZoomIn() {
	if !s.accepting() {
		return
	}
	s.zoom = camera.ClampZoom(s.zoom+1, s.zoomMin, s.zoomMax)
}

// ZoomOut lowers the zoom offset by one step within the configured range.
func (s *Session) ZoomOut() {
	if !s.accepting() {
		return
	}
	s.zoom = camera.ClampZoom(s.zoom-1, s.zoomMin, s.zoomMax)
}

// Apply dispatches a named command.
func (s *Session) Apply(command Command) error {
	switch command {
	case CommandStart:
		s.Start()
	case CommandReset:
		s.Reset()
	case CommandToggleVehicleMode:
		s.ToggleVehicleMode()
	case CommandCycleCameraMode:
		s.CycleCameraMode()
	case CommandZoomIn:
		s.ZoomIn()
	case CommandZoomOut:
		s.ZoomOut()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return nil
}

// Phase returns the current state tag.
func (s *Session) Phase() Phase {
	if s == nil {
		return PhaseNotStarted
	}
	return s.phase
}

// Best returns a copy of the best completion time, nil when none is recorded.
func (s *Session) Best() *float64 {
	if s == nil || s.best == nil {
		return nil
	}
	best := *s.best
	return &best
}

// Seed returns the root seed of the obstacle generator.
func (s *Session) Seed() int64 {
	if s == nil {
		return 0
	}
	return s.seed
}

// Layout returns the arena layout in use.
func (s *Session) Layout() arena.Layout {
	if s == nil {
		return arena.DefaultLayout()
	}
	return s.layout
}

// Snapshot copies the observable state.
func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snapshot := Snapshot{
		Tick:       s.tick,
		Clock:      s.clock,
		Phase:      s.phase,
		Started:    s.started,
		Vehicle:    s.kind,
		Pose:       s.vehicle.Pose(),
		Velocity:   s.vehicle.Velocity,
		Speed:      s.vehicle.Speed(),
		Elapsed:    s.elapsed,
		Best:       s.Best(),
		Message:    s.message,
		CameraMode: s.cameraMode,
		Zoom:       s.zoom,
		Camera:     s.view,
		Attempt:    s.attempt,
		Generation: s.set.Generation,
		Clearance:  s.clearance(),
		ResetIn:    s.scheduler.Remaining(s.clock),
		Obstacles:  append([]collision.Volume(nil), s.set.Obstacles...),
		Boundaries: append([]collision.Volume(nil), s.set.Boundaries...),
	}
	return snapshot
}

func (s *Session) accepting() bool {
	//1.- With the start gate enabled commands wait for Start.
	return s != nil && (s.started || !s.requireStart)
}

func (s *Session) reset(cause string) {
	s.scheduler.Cancel()
	s.rebuild()
	s.phase = PhaseDriving
	s.emit(Event{Kind: EventReset, Detail: cause})
}

// rebuild regenerates the obstacles and respawns the active vehicle.
func (s *Session) rebuild() {
	s.message = ""
	s.elapsed = 0
	s.tooFast = false
	s.attempt++
	s.set = s.generator.Build(s.kind)
	s.set.Advance(s.clock)
	if s.kind == physics.KindAir {
		s.vehicle = physics.NewAir(s.airTuning)
	} else {
		s.vehicle = physics.NewGround(s.groundTuning)
	}
}

func (s *Session) collider() collision.Box {
	return collision.Box{Center: s.vehicle.Position, HalfExtents: s.vehicle.ColliderExtents()}
}

// clearance probes the free distance ahead of the nose.
func (s *Session) clearance() float64 {
	forward := s.vehicle.Forward()
	nose := s.vehicle.Position.Add(forward.Mul(s.vehicle.HalfExtents()[2]))
	return collision.Clearance(nose, forward, sensorRange, s.set.Obstacles, s.set.Boundaries)
}

func (s *Session) cameraInput(mode camera.Mode, dt float64) camera.Input {
	return camera.Input{
		Kind:     s.kind,
		Mode:     mode,
		Zoom:     float64(s.zoom),
		Position: s.vehicle.Position,
		Heading:  s.vehicle.Heading,
		Clock:    s.clock,
		Dt:       dt,
	}
}

func (s *Session) emit(event Event) {
	event.Tick = s.tick
	event.Clock = s.clock
	event.Vehicle = s.kind
	s.pending = append(s.pending, event)
	for _, observer := range s.observers {
		observer.ObserveEvent(event)
	}
}

func (s *Session) drain() []Event {
	if len(s.pending) == 0 {
		return nil
	}
	events := s.pending
	s.pending = nil
	return events
}
