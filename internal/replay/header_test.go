package replay

import (
	"path/filepath"
	"testing"

	"parkarena/broker/internal/arena"
)

func TestWriteAndReadHeader(t *testing.T) {
	dir := t.TempDir()
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		Seed:          9,
		Arena:         ArenaParametersFromLayout(arena.DefaultLayout()),
		FilePointer:   "manifest.json",
	}
	path := filepath.Join(dir, "header.json")
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	loaded, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if loaded.SchemaVersion != header.SchemaVersion || loaded.Seed != 9 {
		t.Fatalf("unexpected header values: %+v", loaded)
	}
	if loaded.Arena["slots"] != 5 || loaded.Arena["closed_back"] != 0 {
		t.Fatalf("unexpected arena params: %#v", loaded.Arena)
	}
}

func TestHeaderValidateRejectsMissingPointer(t *testing.T) {
	if err := (Header{SchemaVersion: 1}).Validate(); err == nil {
		t.Fatal("expected missing file pointer to fail validation")
	}
	if err := (Header{FilePointer: "manifest.json"}).Validate(); err == nil {
		t.Fatal("expected zero schema version to fail validation")
	}
}

func TestArenaParametersCloneIsIndependent(t *testing.T) {
	layout := arena.DefaultLayout()
	layout.ClosedBack = true
	params := ArenaParametersFromLayout(layout)
	if params["closed_back"] != 1 {
		t.Fatalf("expected closed back flag, got %v", params["closed_back"])
	}
	clone := params.Clone()
	clone["width"] = -1
	if params["width"] == -1 {
		t.Fatal("clone shares storage with the original")
	}
	if ArenaParameters(nil).Clone() != nil {
		t.Fatal("expected nil clone of empty parameters")
	}
}
