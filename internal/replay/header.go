package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"parkarena/broker/internal/arena"
)

// HeaderSchemaVersion tracks the schema version for replay header documents.
const HeaderSchemaVersion = 1

// ArenaParameters captures the arena shape a bundle was recorded against.
type ArenaParameters map[string]float64

// ArenaParametersFromLayout flattens the numeric layout fields replay tooling cares about.
func ArenaParametersFromLayout(layout arena.Layout) ArenaParameters {
	params := ArenaParameters{
		"width":          layout.Width,
		"length":         layout.Length,
		"wall_thickness": layout.WallThickness,
		"wall_height":    layout.WallHeight,
		"row_start":      layout.RowStart,
		"row_end":        layout.RowEnd,
		"row_spacing":    layout.RowSpacing,
		"slots":          float64(len(layout.Slots)),
		"air_obstacles":  float64(layout.AirObstacles),
		"trees":          float64(layout.Trees),
		"ai_cars":        float64(layout.AICars),
		"closed_back":    0,
	}
	if layout.ClosedBack {
		params["closed_back"] = 1
	}
	return params
}

// Clone returns a copy of the parameters map.
func (p ArenaParameters) Clone() ArenaParameters {
	if len(p) == 0 {
		return nil
	}
	clone := make(ArenaParameters, len(p))
	for key, value := range p {
		clone[key] = value
	}
	return clone
}

// Header represents the metadata persisted alongside a replay bundle.
type Header struct {
	SchemaVersion int             `json:"schema_version"`
	Seed          int64           `json:"seed"`
	Arena         ArenaParameters `json:"arena,omitempty"`
	FilePointer   string          `json:"file_pointer"`
}

// Validate ensures the header contains enough information for loaders.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	//1.- Indented JSON keeps the header readable without tooling.
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a replay header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
