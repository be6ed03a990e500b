package logic

import (
	"sync"
	"time"
)

// Throttle rate-limits warnings per category. It is best effort: a dropped
// warning is never queued for later.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
}

// NewThrottle creates a Throttle that allows one warning per category per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether a warning for category may be emitted at now, and
// records the emission if so. The first warning of a category is always allowed.
func (t *Throttle) Allow(category string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.last[category]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.last[category] = now
	return true
}

// LastEmitted returns when category last emitted, or the zero time.
func (t *Throttle) LastEmitted(category string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[category]
}
