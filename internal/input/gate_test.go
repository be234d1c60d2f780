package input

import (
	"sync"
	"testing"
	"time"

	"parkarena/broker/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGateRejectsNonMonotonicSequence(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(Config{MaxAge: 250 * time.Millisecond, MinInterval: time.Second / 60}, logging.NewTestLogger(), WithClock(clock))

	//1.- The first frame seeds the client baseline.
	if first := gate.Evaluate(Frame{ClientID: "conn-1", SequenceID: 1}); !first.Accepted {
		t.Fatalf("first frame unexpectedly rejected: %+v", first)
	}
	clock.Advance(time.Second)
	//2.- Replaying the same sequence is out of order.
	second := gate.Evaluate(Frame{ClientID: "conn-1", SequenceID: 1})
	if second.Accepted || second.Reason != DropReasonSequence {
		t.Fatalf("expected sequence drop, got %+v", second)
	}
	if zero := gate.Evaluate(Frame{ClientID: "conn-1"}); zero.Reason != DropReasonSequence {
		t.Fatalf("expected zero sequence to be rejected, got %+v", zero)
	}
	if got := gate.Metrics()["conn-1"].Sequence; got != 2 {
		t.Fatalf("sequence drops = %d, want 2", got)
	}
}

func TestGateRejectsStaleFrames(t *testing.T) {
	clock := &fakeClock{now: time.Unix(10, 0)}
	gate := NewGate(Config{MaxAge: 250 * time.Millisecond}, logging.NewTestLogger(), WithClock(clock))
	if decision := gate.Evaluate(Frame{ClientID: "pilot", SequenceID: 1}); !decision.Accepted {
		t.Fatalf("initial frame rejected: %+v", decision)
	}
	stale := gate.Evaluate(Frame{ClientID: "pilot", SequenceID: 2, SentAt: clock.Now().Add(-time.Second)})
	if stale.Accepted || stale.Reason != DropReasonStale || stale.Delay != time.Second {
		t.Fatalf("expected stale drop with 1s delay, got %+v", stale)
	}
	fresh := gate.Evaluate(Frame{ClientID: "pilot", SequenceID: 3, SentAt: clock.Now().Add(-10 * time.Millisecond)})
	if !fresh.Accepted {
		t.Fatalf("expected fresh frame accepted, got %+v", fresh)
	}
}

func TestGateRateLimitsAndForgets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(Config{MinInterval: 10 * time.Millisecond}, nil, WithClock(clock))
	gate.Evaluate(Frame{ClientID: "a", SequenceID: 1})
	if burst := gate.Evaluate(Frame{ClientID: "a", SequenceID: 2}); burst.Reason != DropReasonRateLimited {
		t.Fatalf("expected rate limit, got %+v", burst)
	}
	clock.Advance(20 * time.Millisecond)
	if later := gate.Evaluate(Frame{ClientID: "a", SequenceID: 3}); !later.Accepted {
		t.Fatalf("expected acceptance after interval, got %+v", later)
	}
	gate.Forget("a")
	if metrics := gate.Metrics(); metrics != nil {
		t.Fatalf("expected counters cleared, got %+v", metrics)
	}
	//1.- A reconnecting client starts a fresh sequence.
	if again := gate.Evaluate(Frame{ClientID: "a", SequenceID: 1}); !again.Accepted {
		t.Fatalf("expected fresh baseline, got %+v", again)
	}
}

func TestSlidingWindowLimiter(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := NewSlidingWindowLimiter(time.Second, 2, clock.Now)
	if !limiter.Allow() || !limiter.Allow() {
		t.Fatal("expected first two events to pass")
	}
	if limiter.Allow() {
		t.Fatal("expected third event inside the window to be refused")
	}
	clock.Advance(1001 * time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("expected window to slide")
	}
	var disabled *SlidingWindowLimiter
	if ok, wait := disabled.Admit(); !ok || wait != 0 {
		t.Fatalf("expected nil limiter to admit without waiting, got %v %v", ok, wait)
	}
	if !disabled.Allow() || !NewSlidingWindowLimiter(0, 0, nil).Allow() {
		t.Fatal("expected disabled limiters to allow everything")
	}
}

func TestSlidingWindowLimiterReportsWait(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := NewSlidingWindowLimiter(time.Second, 2, clock.Now)
	limiter.Admit()
	clock.Advance(300 * time.Millisecond)
	limiter.Admit()
	clock.Advance(200 * time.Millisecond)
	ok, wait := limiter.Admit()
	if ok || wait != 500*time.Millisecond {
		t.Fatalf("expected a 500ms wait for the oldest event, got %v %v", ok, wait)
	}
	//1.- Once the oldest event expires the next one waits on the second.
	clock.Advance(500 * time.Millisecond)
	if ok, _ := limiter.Admit(); !ok {
		t.Fatal("expected the slot freed by the oldest event")
	}
	if ok, wait := limiter.Admit(); ok || wait != 300*time.Millisecond {
		t.Fatalf("expected a 300ms wait, got %v %v", ok, wait)
	}
}

func TestSlotReleasesOnlyItsOwner(t *testing.T) {
	var slot Slot
	slot.Store("a", mustParse(t, map[string]bool{"forward": true}))
	slot.Release("b")
	if !slot.Load().Forward {
		t.Fatal("release by another client must not clear the slot")
	}
	slot.Release("a")
	if slot.Load().Forward || slot.Owner() != "" {
		t.Fatal("expected owner release to clear held controls")
	}
}
