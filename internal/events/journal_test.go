package events

import (
	"testing"

	"parkarena/broker/internal/match"
)

func TestJournalSequencesAndReplays(t *testing.T) {
	//1.- Arrange a journal and append a crash followed by a reset.
	journal := NewJournal(Config{Retain: 8})
	records := journal.Append([]match.Event{{Kind: match.EventCrash}, {Kind: match.EventReset}})
	if len(records) != 2 || records[0].Sequence != 1 || records[1].Sequence != 2 {
		t.Fatalf("unexpected records %+v", records)
	}

	//2.- A client that saw the crash only receives the reset.
	missed, gap := journal.Since(1)
	if gap || len(missed) != 1 || missed[0].Event.Kind != match.EventReset {
		t.Fatalf("unexpected replay %+v gap=%t", missed, gap)
	}
	if all, _ := journal.Since(0); len(all) != 2 {
		t.Fatalf("expected the full log, got %d records", len(all))
	}
	if none, gap := journal.Since(journal.Last()); len(none) != 0 || gap {
		t.Fatalf("expected nothing newer than the last sequence, got %+v gap=%t", none, gap)
	}
}

func TestJournalRetentionReportsGap(t *testing.T) {
	journal := NewJournal(Config{Retain: 3})
	for i := 0; i < 5; i++ {
		journal.Append([]match.Event{{Kind: match.EventCameraMode}})
	}
	records, gap := journal.Since(0)
	if !gap {
		t.Fatal("expected trimmed history to be reported")
	}
	if len(records) != 3 || records[0].Sequence != 3 || records[2].Sequence != 5 {
		t.Fatalf("unexpected retained window %+v", records)
	}
	if _, gap := journal.Since(2); gap {
		t.Fatal("sequence 3 is still retained, so a client at 2 has no gap")
	}
}

func TestJournalIgnoresEmptyAppends(t *testing.T) {
	journal := NewJournal(Config{})
	if records := journal.Append(nil); records != nil || journal.Last() != 0 {
		t.Fatalf("expected empty append to be a no-op, got %+v", records)
	}
	var nilJournal *Journal
	if records, gap := nilJournal.Since(0); records != nil || gap {
		t.Fatal("nil journal must be inert")
	}
}
