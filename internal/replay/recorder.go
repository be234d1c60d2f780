package replay

import (
	"fmt"
	"sync"
	"time"

	"parkarena/broker/internal/collision"
	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
)

// Stats summarises recorder health for monitoring endpoints.
type Stats struct {
	Directory string    `json:"directory"`
	Events    int       `json:"events"`
	Frames    int       `json:"frames"`
	Flushes   int64     `json:"flushes"`
	Failures  int64     `json:"failures"`
	LastFlush time.Time `json:"last_flush"`
}

// Recorder adapts a Writer to the loop's output sink. Obstacle and boundary
// lists are only captured when the arena generation changes.
type Recorder struct {
	writer *Writer
	log    *logging.Logger
	now    func() time.Time

	mu             sync.Mutex
	lastGeneration uint64
	haveGeneration bool
	flushes        int64
	failures       int64
	lastFlush      time.Time
}

// NewRecorder opens a bundle under dir and stamps it with the session metadata.
func NewRecorder(dir, sessionID string, seed int64, params ArenaParameters, logger *logging.Logger, clock func() time.Time) (*Recorder, error) {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logging.L()
	}
	writer, _, err := NewWriter(dir, sessionID, clock)
	if err != nil {
		return nil, fmt.Errorf("open replay bundle: %w", err)
	}
	writer.SetHeaderMetadata(seed, params)
	logger.Info("replay capture started", logging.String("directory", writer.Directory()), logging.Int64("seed", seed))
	return &Recorder{writer: writer, log: logger, now: clock}, nil
}

// PublishSnapshot records a frame.
func (r *Recorder) PublishSnapshot(snapshot match.Snapshot) {
	if r == nil {
		return
	}
	r.mu.Lock()
	//1.- Drop the static geometry unless the course was just regenerated; moving volumes stay in every frame.
	if r.haveGeneration && snapshot.Generation == r.lastGeneration {
		snapshot.Obstacles = dynamicVolumes(snapshot.Obstacles)
		snapshot.Boundaries = nil
	}
	r.lastGeneration = snapshot.Generation
	r.haveGeneration = true
	r.mu.Unlock()

	if err := r.writer.AppendFrame(snapshot); err != nil {
		r.fail("replay frame write failed", err)
	}
}

// PublishEvents appends every event to the event log.
func (r *Recorder) PublishEvents(events []match.Event) {
	if r == nil {
		return
	}
	for _, event := range events {
		if err := r.writer.AppendEvent(event); err != nil {
			r.fail("replay event write failed", err)
			return
		}
	}
}

// Flush pushes staged frames to disk and returns the bundle directory.
func (r *Recorder) Flush() (string, error) {
	if r == nil {
		return "", fmt.Errorf("recorder not configured")
	}
	if err := r.writer.Flush(); err != nil {
		r.fail("replay flush failed", err)
		return "", err
	}
	r.mu.Lock()
	r.flushes++
	r.lastFlush = r.now().UTC()
	r.mu.Unlock()
	return r.writer.Directory(), nil
}

// Close finalises the bundle.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	if err := r.writer.Close(); err != nil {
		r.fail("replay close failed", err)
		return err
	}
	r.log.Info("replay capture closed", logging.String("directory", r.writer.Directory()))
	return nil
}

// Snapshot returns statistics describing the recorder state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	events, frames := r.writer.Counts()
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Directory: r.writer.Directory(),
		Events:    events,
		Frames:    frames,
		Flushes:   r.flushes,
		Failures:  r.failures,
		LastFlush: r.lastFlush,
	}
}

func (r *Recorder) fail(message string, err error) {
	r.mu.Lock()
	r.failures++
	first := r.failures == 1
	r.mu.Unlock()
	//1.- Warn on the first failure only; later ones are visible through the counter.
	if first {
		r.log.Warn(message, logging.Error(err), logging.String("directory", r.writer.Directory()))
	}
}

func dynamicVolumes(volumes []collision.Volume) []collision.Volume {
	var moving []collision.Volume
	for _, volume := range volumes {
		if volume.Dynamic {
			moving = append(moving, volume)
		}
	}
	return moving
}
