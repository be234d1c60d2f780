package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"parkarena/broker/internal/logging"
)

func TestCleanerEnforcesMaxBundles(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	//1.- Seed three bundles and a stray file the cleaner must ignore.
	writeBundle(t, tmp, "alpha", now.Add(-3*time.Hour), 64)
	writeBundle(t, tmp, "bravo", now.Add(-2*time.Hour), 32)
	writeBundle(t, tmp, "charlie", now.Add(-time.Hour), 48)
	if err := os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxBundles: 2}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listEntries(t, tmp)
	expected := []string{"bravo", "charlie", "notes.txt"}
	if fmt.Sprint(remaining) != fmt.Sprint(expected) {
		t.Fatalf("unexpected retained entries: %v", remaining)
	}
	stats := cleaner.Stats()
	if stats.Bundles != 2 || stats.Removed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Bytes != int64(32+2+48+2) {
		t.Fatalf("expected byte total 84, got %d", stats.Bytes)
	}
	if !stats.LastSweep.Equal(now) {
		t.Fatalf("expected last sweep timestamp %v, got %v", now, stats.LastSweep)
	}
}

func TestCleanerPrunesByAgeAndHonoursProtection(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	writeBundle(t, tmp, "delta", now.Add(-48*time.Hour), 16)
	writeBundle(t, tmp, "echo", now.Add(-72*time.Hour), 8)
	writeBundle(t, tmp, "foxtrot", now.Add(-time.Hour), 4)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxAge: 36 * time.Hour}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.Protect(filepath.Join(tmp, "echo"))
	cleaner.RunOnce()

	remaining := listEntries(t, tmp)
	expected := []string{"echo", "foxtrot"}
	if fmt.Sprint(remaining) != fmt.Sprint(expected) {
		t.Fatalf("unexpected retained entries: %v", remaining)
	}
}

func writeBundle(t *testing.T, dir, name string, mod time.Time, payload int) {
	t.Helper()
	bundle := filepath.Join(dir, name)
	if err := os.MkdirAll(bundle, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	files := map[string][]byte{
		"manifest.json":  []byte("{}"),
		"frames.bin.zst": make([]byte, payload),
	}
	for file, data := range files {
		path := filepath.Join(bundle, file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}
}

func listEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}
