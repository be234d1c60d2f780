package replay

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
)

func TestWriterAppendAndFlushCadence(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	writer, manifest, err := NewWriter(tmp, "Test Session!", clock)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if filepath.Base(writer.Directory()) != "TestSession-20240710T120000Z" {
		t.Fatalf("unexpected bundle directory %q", writer.Directory())
	}
	if manifest.FrameIntervalMs != 200 {
		t.Fatalf("expected frame interval 200 ms, got %d", manifest.FrameIntervalMs)
	}
	writer.SetHeaderMetadata(42, ArenaParameters{"width": 20})

	if err := writer.AppendEvent(match.Event{Kind: match.EventStart, Tick: 1, Clock: 0.5, Vehicle: physics.KindGround}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	for tick := uint64(1); tick <= 3; tick++ {
		snapshot := match.Snapshot{Tick: tick, Clock: float64(tick) / 10, Vehicle: physics.KindGround, Phase: match.PhaseDriving}
		if err := writer.AppendFrame(snapshot); err != nil {
			t.Fatalf("append frame %d: %v", tick, err)
		}
		now = now.Add(120 * time.Millisecond)
	}
	if events, frames := writer.Counts(); events != 1 || frames != 3 {
		t.Fatalf("unexpected counts events=%d frames=%d", events, frames)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	if err := writer.AppendEvent(match.Event{Kind: match.EventReset}); err == nil {
		t.Fatal("expected append after close to fail")
	}

	manifestBytes, err := os.ReadFile(filepath.Join(writer.Directory(), "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var onDisk Manifest
	if err := json.Unmarshal(manifestBytes, &onDisk); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if onDisk.EventsPath != "events.jsonl.sz" || onDisk.FramesPath != "frames.bin.zst" {
		t.Fatalf("unexpected manifest paths: %+v", onDisk)
	}

	bundle, err := LoadBundle(writer.Directory())
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	if bundle.Header == nil || bundle.Header.Seed != 42 || bundle.Header.Arena["width"] != 20 {
		t.Fatalf("unexpected header %+v", bundle.Header)
	}
	if len(bundle.Events) != 1 || bundle.Events[0].Event.Kind != match.EventStart || bundle.Events[0].ClockMs != 500 {
		t.Fatalf("unexpected events %+v", bundle.Events)
	}
	if len(bundle.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(bundle.Frames))
	}
	for i, frame := range bundle.Frames {
		if frame.Tick != uint64(i+1) || frame.Snapshot.Tick != frame.Tick {
			t.Fatalf("frame %d out of order: %+v", i, frame)
		}
		if frame.ClockMs != int64(100*(i+1)) {
			t.Fatalf("frame %d clock %d", i, frame.ClockMs)
		}
	}
	if gap := bundle.Frames[1].CapturedAt.Sub(bundle.Frames[0].CapturedAt); gap != 120*time.Millisecond {
		t.Fatalf("unexpected capture spacing %v", gap)
	}
}

func TestNewWriterRequiresRoot(t *testing.T) {
	if _, _, err := NewWriter("", "x", nil); err == nil {
		t.Fatal("expected empty root to be rejected")
	}
	var writer *Writer
	if err := writer.AppendFrame(match.Snapshot{}); err == nil {
		t.Fatal("expected nil writer to reject frames")
	}
	if writer.Close() != nil {
		t.Fatal("nil writer close should be a no-op")
	}
}

func TestLoadFramesRejectsTruncatedStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.bin.zst")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	encoder, err := zstd.NewWriter(file)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	if _, err := encoder.Write(make([]byte, 10)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := encoder.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	file.Close()

	if _, err := loadFrames(path); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame, got %v", err)
	}
}
