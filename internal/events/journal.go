// Package events keeps a bounded, sequenced log of session events so
// reconnecting clients can catch up on what they missed.
package events

import (
	"sync"

	"parkarena/broker/internal/match"
)

// defaultRetention keeps the last 256 events if no explicit value is provided.
const defaultRetention = 256

// Record pairs an event with its journal sequence. Sequences start at 1.
type Record struct {
	Sequence uint64      `json:"sequence"`
	Event    match.Event `json:"event"`
}

// Config controls the retention policy for the journal.
type Config struct {
	Retain int
}

// Journal assigns sequences to events and retains the most recent ones.
type Journal struct {
	mu        sync.Mutex
	nextSeq   uint64
	retention int
	log       []Record
}

// NewJournal constructs a journal using the provided configuration.
func NewJournal(cfg Config) *Journal {
	retention := cfg.Retain
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Journal{retention: retention, log: make([]Record, 0, retention)}
}

// Append sequences the events in order and returns their records.
func (j *Journal) Append(events []match.Event) []Record {
	if j == nil || len(events) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	records := make([]Record, 0, len(events))
	for _, event := range events {
		j.nextSeq++
		record := Record{Sequence: j.nextSeq, Event: event}
		j.log = append(j.log, record)
		records = append(records, record)
	}
	//1.- Trim the oldest entries once the log outgrows its retention.
	if overflow := len(j.log) - j.retention; overflow > 0 {
		j.log = append(j.log[:0], j.log[overflow:]...)
	}
	return records
}

// Since returns the retained records newer than sequence and whether the
// caller missed events that were already trimmed.
func (j *Journal) Since(sequence uint64) ([]Record, bool) {
	if j == nil {
		return nil, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.log) == 0 {
		return nil, sequence < j.nextSeq
	}
	gap := sequence+1 < j.log[0].Sequence
	var out []Record
	for _, record := range j.log {
		if record.Sequence > sequence {
			out = append(out, record)
		}
	}
	return out, gap
}

// Last reports the most recently assigned sequence.
func (j *Journal) Last() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq
}
