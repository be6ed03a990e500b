package logic

import (
	"sync"
	"time"
)

// ActivityConfig controls how the activity verdict is derived.
type ActivityConfig struct {
	Policy Policy
	// Window is how long after the last received data the reader is
	// presumed active without probing.
	Window time.Duration
	// HealthCheckInterval is the minimum spacing between probes.
	HealthCheckInterval time.Duration
}

// Verdict is the outcome of one activity evaluation.
type Verdict struct {
	Activity Activity
	// Probed is true if the probe ran during this evaluation.
	Probed bool
	// Warn is true if this evaluation should raise a device-inactive
	// warning. The caller still passes it through the throttle.
	Warn bool
}

// ActivityTracker derives the "device active" signal. It is safe for
// concurrent use: the ingest path marks data received while the monitor
// evaluates.
type ActivityTracker struct {
	mu              sync.Mutex
	cfg             ActivityConfig
	lastReceived    time.Time
	lastHealthCheck time.Time
	active          bool
}

// NewActivityTracker creates a tracker. Both timestamps start at startTime,
// so the reader is presumed active for the first window.
func NewActivityTracker(cfg ActivityConfig, startTime time.Time) *ActivityTracker {
	if cfg.Policy == "" {
		cfg.Policy = PolicyRecency
	}
	return &ActivityTracker{
		cfg:             cfg,
		lastReceived:    startTime,
		lastHealthCheck: startTime,
		active:          true,
	}
}

// MarkReceived records that scan data arrived at now and marks the reader active.
func (t *ActivityTracker) MarkReceived(now time.Time) {
	t.mu.Lock()
	t.lastReceived = now
	t.active = true
	t.mu.Unlock()
}

// LastReceived returns the time data was last received.
func (t *ActivityTracker) LastReceived() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReceived
}

// LastHealthCheck returns the time the probe last ran.
func (t *ActivityTracker) LastHealthCheck() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastHealthCheck
}

// Active returns the most recent verdict.
func (t *ActivityTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Policy returns the configured policy.
func (t *ActivityTracker) Policy() Policy {
	return t.cfg.Policy
}

// Evaluate re-derives the verdict. channelOpen reports whether a live
// handle is attached; probe runs the health check and is only called
// under the recency policy, when the reader has been silent and the
// health-check interval has elapsed.
//
// The probe runs without the lock held so MarkReceived never waits on
// serial I/O.
func (t *ActivityTracker) Evaluate(now time.Time, channelOpen bool, probe func() bool) Verdict {
	if t.cfg.Policy == PolicyPresence {
		return t.evaluatePresence(channelOpen)
	}

	t.mu.Lock()
	if now.Sub(t.lastReceived) < t.cfg.Window {
		t.active = true
		t.mu.Unlock()
		return Verdict{Activity: ActivityActive}
	}

	if !channelOpen {
		t.active = false
		t.mu.Unlock()
		return Verdict{Activity: ActivityInactive, Warn: true}
	}

	if now.Sub(t.lastHealthCheck) < t.cfg.HealthCheckInterval {
		v := Verdict{Activity: activityOf(t.active)}
		t.mu.Unlock()
		return v
	}
	t.lastHealthCheck = now
	t.mu.Unlock()

	ok := probe != nil && probe()

	t.mu.Lock()
	// Data may have arrived while probing; it outranks a failed probe.
	if !ok && now.Sub(t.lastReceived) < t.cfg.Window {
		ok = true
	}
	t.active = ok
	t.mu.Unlock()

	return Verdict{Activity: activityOf(ok), Probed: true, Warn: !ok}
}

func (t *ActivityTracker) evaluatePresence(channelOpen bool) Verdict {
	t.mu.Lock()
	t.active = channelOpen
	t.mu.Unlock()
	if channelOpen {
		return Verdict{Activity: ActivityActive}
	}
	return Verdict{Activity: ActivityInactive, Warn: true}
}

func activityOf(active bool) Activity {
	if active {
		return ActivityActive
	}
	return ActivityInactive
}
