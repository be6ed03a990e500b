package logic

import (
	"testing"
	"time"
)

func newRecencyTracker(start time.Time) *ActivityTracker {
	return NewActivityTracker(ActivityConfig{
		Policy:              PolicyRecency,
		Window:              5 * time.Minute,
		HealthCheckInterval: 2 * time.Minute,
	}, start)
}

// countingProbe returns a probe func that reports result and counts calls.
func countingProbe(result bool, calls *int) func() bool {
	return func() bool {
		*calls++
		return result
	}
}

func TestNewActivityTrackerPresumedActive(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)

	if !tr.Active() {
		t.Error("new tracker should be active")
	}
	if !tr.LastReceived().Equal(start) {
		t.Errorf("LastReceived: got %v, want %v", tr.LastReceived(), start)
	}
	if !tr.LastHealthCheck().Equal(start) {
		t.Errorf("LastHealthCheck: got %v, want %v", tr.LastHealthCheck(), start)
	}
}

func TestNewActivityTrackerDefaultsToRecency(t *testing.T) {
	tr := NewActivityTracker(ActivityConfig{}, time.Time{})
	if tr.Policy() != PolicyRecency {
		t.Errorf("Policy: got %q, want %q", tr.Policy(), PolicyRecency)
	}
}

func TestRecencyWithinWindowSkipsProbe(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)
	tr.MarkReceived(start.Add(10 * time.Minute))

	calls := 0
	// Probe would fail, but must not be consulted.
	v := tr.Evaluate(start.Add(14*time.Minute), true, countingProbe(false, &calls))

	if v.Activity != ActivityActive {
		t.Errorf("Activity: got %s, want ACTIVE", v.Activity)
	}
	if calls != 0 {
		t.Errorf("probe called %d times, want 0", calls)
	}
	if v.Probed || v.Warn {
		t.Errorf("unexpected verdict flags: %+v", v)
	}
}

func TestRecencySilentRunsProbe(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)

	calls := 0
	v := tr.Evaluate(start.Add(6*time.Minute), true, countingProbe(true, &calls))

	if calls != 1 {
		t.Fatalf("probe called %d times, want 1", calls)
	}
	if v.Activity != ActivityActive || !v.Probed || v.Warn {
		t.Errorf("unexpected verdict: %+v", v)
	}
	if !tr.LastHealthCheck().Equal(start.Add(6 * time.Minute)) {
		t.Errorf("LastHealthCheck not updated: %v", tr.LastHealthCheck())
	}
}

func TestRecencyProbeFailureIsInactiveAndWarns(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)

	calls := 0
	v := tr.Evaluate(start.Add(6*time.Minute), true, countingProbe(false, &calls))

	if v.Activity != ActivityInactive {
		t.Errorf("Activity: got %s, want INACTIVE", v.Activity)
	}
	if !v.Warn {
		t.Error("failed probe should request a warning")
	}
	if tr.Active() {
		t.Error("tracker should be inactive")
	}
}

func TestRecencyKeepsVerdictBetweenHealthChecks(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)

	calls := 0
	tr.Evaluate(start.Add(6*time.Minute), true, countingProbe(false, &calls))

	// One minute later: cadence not elapsed, previous verdict kept, no new warning.
	v := tr.Evaluate(start.Add(7*time.Minute), true, countingProbe(true, &calls))
	if calls != 1 {
		t.Errorf("probe called %d times, want 1", calls)
	}
	if v.Activity != ActivityInactive || v.Probed || v.Warn {
		t.Errorf("unexpected verdict: %+v", v)
	}

	// Two minutes after the first probe: probe again and adopt the result.
	v = tr.Evaluate(start.Add(8*time.Minute), true, countingProbe(true, &calls))
	if calls != 2 {
		t.Errorf("probe called %d times, want 2", calls)
	}
	if v.Activity != ActivityActive {
		t.Errorf("Activity: got %s, want ACTIVE", v.Activity)
	}
}

func TestRecencyChannelClosedIsInactive(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)

	calls := 0
	v := tr.Evaluate(start.Add(6*time.Minute), false, countingProbe(true, &calls))

	if calls != 0 {
		t.Errorf("probe must not run on a closed channel, called %d times", calls)
	}
	if v.Activity != ActivityInactive || !v.Warn {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestRecencyDataDuringProbeWins(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)
	now := start.Add(6 * time.Minute)

	probe := func() bool {
		tr.MarkReceived(now.Add(time.Second))
		return false
	}
	v := tr.Evaluate(now, true, probe)
	if v.Activity != ActivityActive {
		t.Errorf("Activity: got %s, want ACTIVE", v.Activity)
	}
}

func TestRecencyReceivedAfterInactiveReactivates(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := newRecencyTracker(start)
	calls := 0
	tr.Evaluate(start.Add(6*time.Minute), true, countingProbe(false, &calls))

	tr.MarkReceived(start.Add(6*time.Minute + 30*time.Second))
	if !tr.Active() {
		t.Error("MarkReceived should mark the tracker active")
	}
	v := tr.Evaluate(start.Add(7*time.Minute), true, countingProbe(false, &calls))
	if v.Activity != ActivityActive {
		t.Errorf("Activity: got %s, want ACTIVE", v.Activity)
	}
}

func TestPresencePolicy(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewActivityTracker(ActivityConfig{
		Policy:              PolicyPresence,
		Window:              5 * time.Minute,
		HealthCheckInterval: 2 * time.Minute,
	}, start)

	calls := 0
	// Silent for an hour but open: still active, never probed.
	v := tr.Evaluate(start.Add(time.Hour), true, countingProbe(false, &calls))
	if v.Activity != ActivityActive {
		t.Errorf("open channel: got %s, want ACTIVE", v.Activity)
	}

	v = tr.Evaluate(start.Add(time.Hour+time.Minute), false, countingProbe(true, &calls))
	if v.Activity != ActivityInactive || !v.Warn {
		t.Errorf("closed channel: unexpected verdict %+v", v)
	}
	if calls != 0 {
		t.Errorf("presence policy must not probe, called %d times", calls)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, ok := ParsePolicy("recency"); !ok || p != PolicyRecency {
		t.Errorf("recency: got (%q, %v)", p, ok)
	}
	if p, ok := ParsePolicy("presence"); !ok || p != PolicyPresence {
		t.Errorf("presence: got (%q, %v)", p, ok)
	}
	if _, ok := ParsePolicy("always"); ok {
		t.Error("unknown policy should not parse")
	}
}
