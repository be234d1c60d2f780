package hub

import (
	"encoding/json"

	"parkarena/broker/internal/events"
	"parkarena/broker/internal/match"
	"parkarena/broker/internal/timesync"
)

// Message types carried in the "type" field of every frame.
const (
	TypeHello    = "hello"
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
	TypeError    = "error"
	TypeInput    = "input"
	TypeCommand  = "command"
	TypeTimeSync = "time_sync"
)

// Inbound is the union of frames a client may send.
type Inbound struct {
	Type       string          `json:"type"`
	SequenceID uint64          `json:"sequence_id,omitempty"`
	SentAtMs   int64           `json:"sent_at_ms,omitempty"`
	Controls   map[string]bool `json:"controls,omitempty"`
	Command    string          `json:"command,omitempty"`
}

// Hello greets a freshly connected client.
type Hello struct {
	Type     string   `json:"type"`
	ClientID string   `json:"client_id"`
	Driver   bool     `json:"driver"`
	Controls []string `json:"controls"`
	Commands []string `json:"commands"`
	// EventSequence is the journal position at connect time; resume with ?since=.
	EventSequence uint64 `json:"event_sequence"`
	HistoryGap    bool   `json:"history_gap,omitempty"`
}

// SnapshotMessage wraps a session snapshot.
type SnapshotMessage struct {
	Type     string         `json:"type"`
	Snapshot match.Snapshot `json:"snapshot"`
}

// EventMessage wraps one session event.
type EventMessage struct {
	Type     string      `json:"type"`
	Sequence uint64      `json:"sequence,omitempty"`
	Event    match.Event `json:"event"`
}

// TimeSyncMessage carries one clock sample.
type TimeSyncMessage struct {
	Type string `json:"type"`
	timesync.Sample
}

// ErrorMessage reports a rejected frame back to its sender.
type ErrorMessage struct {
	Type       string `json:"type"`
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	SequenceID uint64 `json:"sequence_id,omitempty"`
	RetryMs    int64  `json:"retry_ms,omitempty"`
}

func encodeSnapshot(snapshot match.Snapshot) ([]byte, error) {
	return json.Marshal(SnapshotMessage{Type: TypeSnapshot, Snapshot: snapshot})
}

func encodeEvent(record events.Record) ([]byte, error) {
	return json.Marshal(EventMessage{Type: TypeEvent, Sequence: record.Sequence, Event: record.Event})
}

func encodeTimeSync(sample timesync.Sample) []byte {
	data, _ := json.Marshal(TimeSyncMessage{Type: TypeTimeSync, Sample: sample})
	return data
}

func encodeError(message ErrorMessage) []byte {
	message.Type = TypeError
	data, err := json.Marshal(message)
	if err != nil {
		return []byte(`{"type":"error","error":"internal"}`)
	}
	return data
}

var commandNames = []string{
	string(match.CommandStart),
	string(match.CommandReset),
	string(match.CommandToggleVehicleMode),
	string(match.CommandCycleCameraMode),
	string(match.CommandZoomIn),
	string(match.CommandZoomOut),
}
