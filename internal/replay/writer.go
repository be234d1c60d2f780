package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"parkarena/broker/internal/match"
)

var sessionIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const (
	// ManifestVersion is the bundle layout version written by this package.
	ManifestVersion = 1

	frameInterval   = 200 * time.Millisecond
	frameHeaderSize = 8 + 8 + 8 + 4

	manifestName = "manifest.json"
	headerName   = "header.json"
	eventsName   = "events.jsonl.sz"
	framesName   = "frames.bin.zst"
)

type frameBlob struct {
	tick       uint64
	clockMs    int64
	capturedAt time.Time
	payload    []byte
}

// eventRecord is one line of the event log.
type eventRecord struct {
	Tick       uint64          `json:"tick"`
	ClockMs    int64           `json:"clock_ms"`
	CapturedAt string          `json:"captured_at"`
	Kind       string          `json:"kind"`
	Event      json.RawMessage `json:"event"`
}

// Manifest describes the bundle layout so loaders can locate artefacts.
type Manifest struct {
	Version         int    `json:"version"`
	CreatedAt       string `json:"created_at"`
	FrameIntervalMs int    `json:"frame_interval_ms"`
	EventsPath      string `json:"events_path"`
	FramesPath      string `json:"frames_path"`
}

// Writer streams session events and snapshots into a compressed bundle.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	pending     []frameBlob
	lastFlush   time.Time
	events      int
	frames      int
	seed        int64
	arena       ArenaParameters
	closed      bool
}

// NewWriter prepares the bundle directory and opens the compressed sinks.
func NewWriter(root, sessionID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := sessionIDCleaner.ReplaceAllString(sessionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsName))
	if err != nil {
		return nil, Manifest{}, err
	}
	frameFile, err := os.Create(filepath.Join(path, framesName))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	manifest := Manifest{
		Version:         ManifestVersion,
		CreatedAt:       created.Format(time.RFC3339Nano),
		FrameIntervalMs: int(frameInterval / time.Millisecond),
		EventsPath:      eventsName,
		FramesPath:      framesName,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, manifestName), data, 0o644)
	}
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:         path,
		now:         clock,
		eventFile:   eventFile,
		eventStream: eventStream,
		frameFile:   frameFile,
		frameStream: frameStream,
	}, manifest, nil
}

// Directory exposes the directory backing the bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// SetHeaderMetadata records the seed and arena shape written to header.json on Close.
func (w *Writer) SetHeaderMetadata(seed int64, params ArenaParameters) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.seed = seed
	w.arena = params.Clone()
	w.mu.Unlock()
}

// AppendEvent writes one session event as a JSON line of the event log.
func (w *Writer) AppendEvent(event match.Event) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}

	//1.- Wrap the event with tick metadata so the log can be scanned without decoding payloads.
	line, err := json.Marshal(eventRecord{
		Tick:       event.Tick,
		ClockMs:    secondsToMillis(event.Clock),
		CapturedAt: captured.Format(time.RFC3339Nano),
		Kind:       string(event.Kind),
		Event:      payload,
	})
	if err != nil {
		return err
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	w.events++
	return w.eventStream.Flush()
}

// AppendFrame stages a snapshot and writes staged frames once per cadence interval.
func (w *Writer) AppendFrame(snapshot match.Snapshot) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	payload, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}

	w.pending = append(w.pending, frameBlob{
		tick:       snapshot.Tick,
		clockMs:    secondsToMillis(snapshot.Clock),
		capturedAt: captured,
		payload:    payload,
	})
	w.frames++
	if w.lastFlush.IsZero() {
		w.lastFlush = captured
		return nil
	}
	if captured.Sub(w.lastFlush) >= frameInterval {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.lastFlush = captured
	}
	return nil
}

// Counts reports how many events and frames have been accepted.
func (w *Writer) Counts() (events, frames int) {
	if w == nil {
		return 0, 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events, w.frames
}

// Flush forces staged frames to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.lastFlush = w.now().UTC()
	return w.frameStream.Flush()
}

// Close writes the header, flushes every stream and releases the file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	//1.- Persist the header first so a partially flushed bundle still identifies its arena.
	var firstErr error
	header := Header{SchemaVersion: HeaderSchemaVersion, Seed: w.seed, Arena: w.arena.Clone(), FilePointer: manifestName}
	if err := WriteHeader(filepath.Join(w.dir, headerName), header); err != nil {
		firstErr = err
	}
	//2.- Attempt every flush and close, surfacing the first failure.
	steps := []func() error{
		w.flushLocked,
		w.eventStream.Flush,
		w.eventStream.Close,
		w.eventFile.Close,
		w.frameStream.Close,
		w.frameFile.Close,
	}
	for _, step := range steps {
		if err := step(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flushLocked writes staged frames to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	header := make([]byte, frameHeaderSize)
	for _, frame := range w.pending {
		//1.- Fixed little-endian header then the payload so readers can step frame by frame.
		binary.LittleEndian.PutUint64(header[0:8], frame.tick)
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.clockMs))
		binary.LittleEndian.PutUint64(header[16:24], uint64(frame.capturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[24:28], uint32(len(frame.payload)))
		if _, err := w.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := w.frameStream.Write(frame.payload); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}

func secondsToMillis(seconds float64) int64 {
	return int64(seconds*1000 + 0.5)
}
