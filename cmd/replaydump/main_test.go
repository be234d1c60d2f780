package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"parkarena/broker/internal/logging"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/physics"
	"parkarena/broker/internal/replay"
)

func recordBundle(t *testing.T, dir string) string {
	t.Helper()
	session := match.NewSession(match.WithSeed(9))
	recorder, err := replay.NewRecorder(dir, "dump", session.Seed(), replay.ArenaParametersFromLayout(session.Layout()), logging.NewTestLogger(), nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	for i := 0; i < 3; i++ {
		outcome := session.Advance(1.0/60, physics.Controls{Forward: true})
		recorder.PublishEvents(outcome.Events)
		recorder.PublishSnapshot(session.Snapshot())
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return recorder.Snapshot().Directory
}

func TestDumpBundleEmitsFrames(t *testing.T) {
	bundleDir := recordBundle(t, t.TempDir())

	var out bytes.Buffer
	if err := dumpBundle(&out, bundleDir); err != nil {
		t.Fatalf("dumpBundle: %v", err)
	}
	var decoded struct {
		Header struct {
			Seed int64 `json:"seed"`
		} `json:"header"`
		Frames []struct {
			Tick     uint64         `json:"tick"`
			Snapshot match.Snapshot `json:"snapshot"`
		} `json:"frames"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if len(decoded.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(decoded.Frames))
	}
	if decoded.Frames[2].Tick != 3 || decoded.Frames[2].Snapshot.Tick != 3 {
		t.Fatalf("unexpected last frame %+v", decoded.Frames[2])
	}
}

func TestListBundlesPrintsSeedAndArena(t *testing.T) {
	root := t.TempDir()
	recordBundle(t, root)

	var out bytes.Buffer
	if err := listBundles(&out, root); err != nil {
		t.Fatalf("listBundles: %v", err)
	}
	text := out.String()
	for _, want := range []string{"seed: 9", "arena:", "slots: 5.000", "manifest:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in listing:\n%s", want, text)
		}
	}
}

func TestDumpBundleRejectsMissingPath(t *testing.T) {
	if err := dumpBundle(&bytes.Buffer{}, t.TempDir()+"/missing"); err == nil {
		t.Fatal("expected an error for a missing bundle")
	}
}
