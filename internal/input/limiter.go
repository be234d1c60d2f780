package input

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most limit events within any window. The
// admitted timestamps live in a ring sized to the limit, so the oldest one
// tells a refused caller how long to back off.
type SlidingWindowLimiter struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	ring  []time.Time
	head  int
	count int
}

// NewSlidingWindowLimiter constructs a limiter; a non-positive window or limit disables it.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	l := &SlidingWindowLimiter{window: window, now: timeSource}
	if limit > 0 && window > 0 {
		l.ring = make([]time.Time, limit)
	}
	return l
}

// Allow records an event and reports whether it fits in the window.
func (l *SlidingWindowLimiter) Allow() bool {
	ok, _ := l.Admit()
	return ok
}

// Admit records an event when it fits; otherwise it reports the wait until
// the oldest admitted event leaves the window.
func (l *SlidingWindowLimiter) Admit() (bool, time.Duration) {
	if l == nil || len(l.ring) == 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	//1.- Expire from the oldest end; the ring is ordered by admission time.
	for l.count > 0 && !l.ring[l.head].After(cutoff) {
		l.head = (l.head + 1) % len(l.ring)
		l.count--
	}
	if l.count == len(l.ring) {
		return false, l.ring[l.head].Sub(cutoff)
	}
	//2.- Append behind the newest entry.
	l.ring[(l.head+l.count)%len(l.ring)] = now
	l.count++
	return true, 0
}
