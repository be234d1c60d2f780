package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"parkarena/broker/internal/match"
)

// ErrTruncatedFrame reports a frame stream that ends inside a record.
var ErrTruncatedFrame = errors.New("frame payload truncated")

// EventEntry is one decoded line of the event log.
type EventEntry struct {
	Tick       uint64      `json:"tick"`
	ClockMs    int64       `json:"clock_ms"`
	CapturedAt time.Time   `json:"captured_at"`
	Event      match.Event `json:"event"`
}

// FrameEntry is one decoded frame of the frame stream.
type FrameEntry struct {
	Tick       uint64         `json:"tick"`
	ClockMs    int64          `json:"clock_ms"`
	CapturedAt time.Time      `json:"captured_at"`
	Snapshot   match.Snapshot `json:"snapshot"`
}

// Bundle is a fully loaded replay directory.
type Bundle struct {
	Manifest Manifest     `json:"manifest"`
	Header   *Header      `json:"header,omitempty"`
	Events   []EventEntry `json:"events"`
	Frames   []FrameEntry `json:"frames"`
}

// LoadBundle reads the manifest, header, events and frames of a bundle. path
// may name the bundle directory or its manifest file.
func LoadBundle(path string) (Bundle, error) {
	if strings.TrimSpace(path) == "" {
		return Bundle{}, fmt.Errorf("replay path must be provided")
	}

	//1.- Resolve the manifest so asset paths are relative to its directory.
	manifestPath := path
	info, err := os.Stat(path)
	if err != nil {
		return Bundle{}, err
	}
	if info.IsDir() {
		manifestPath = filepath.Join(path, manifestName)
	}
	dir := filepath.Dir(manifestPath)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Bundle{}, err
	}
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle.Manifest); err != nil {
		return Bundle{}, fmt.Errorf("decode manifest: %w", err)
	}
	if bundle.Manifest.Version != ManifestVersion {
		return Bundle{}, fmt.Errorf("unsupported manifest version %d", bundle.Manifest.Version)
	}

	//2.- The header is only written on Close, so a live bundle may not have one yet.
	header, err := ReadHeader(filepath.Join(dir, headerName))
	switch {
	case err == nil:
		bundle.Header = &header
	case !errors.Is(err, fs.ErrNotExist):
		return Bundle{}, fmt.Errorf("read header: %w", err)
	}

	//3.- Decode the event timeline, then the frames.
	if bundle.Events, err = loadEvents(filepath.Join(dir, bundle.Manifest.EventsPath)); err != nil {
		return Bundle{}, fmt.Errorf("load events: %w", err)
	}
	if bundle.Frames, err = loadFrames(filepath.Join(dir, bundle.Manifest.FramesPath)); err != nil {
		return Bundle{}, fmt.Errorf("load frames: %w", err)
	}
	return bundle, nil
}

func loadEvents(path string) ([]EventEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var events []EventEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record eventRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, err
		}
		captured, err := time.Parse(time.RFC3339Nano, record.CapturedAt)
		if err != nil {
			return nil, err
		}
		entry := EventEntry{Tick: record.Tick, ClockMs: record.ClockMs, CapturedAt: captured}
		if err := json.Unmarshal(record.Event, &entry.Event); err != nil {
			return nil, err
		}
		events = append(events, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func loadFrames(path string) ([]FrameEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var frames []FrameEntry
	offset := 0
	for offset < len(payload) {
		if offset+frameHeaderSize > len(payload) {
			return nil, ErrTruncatedFrame
		}
		//1.- Read the fixed header then decode the snapshot it prefixes.
		tick := binary.LittleEndian.Uint64(payload[offset : offset+8])
		clockMs := int64(binary.LittleEndian.Uint64(payload[offset+8 : offset+16]))
		captured := int64(binary.LittleEndian.Uint64(payload[offset+16 : offset+24]))
		size := int(binary.LittleEndian.Uint32(payload[offset+24 : offset+28]))
		offset += frameHeaderSize
		if offset+size > len(payload) {
			return nil, ErrTruncatedFrame
		}
		snapshot, err := DecodeSnapshot(payload[offset : offset+size])
		if err != nil {
			return nil, err
		}
		offset += size
		frames = append(frames, FrameEntry{
			Tick:       tick,
			ClockMs:    clockMs,
			CapturedAt: time.Unix(0, captured).UTC(),
			Snapshot:   snapshot,
		})
	}
	return frames, nil
}
