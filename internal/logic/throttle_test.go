package logic

import (
	"testing"
	"time"
)

func TestThrottleFirstOccurrenceAllowed(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !th.Allow(CategorySerial, now) {
		t.Error("first warning should be allowed")
	}
	if !th.LastEmitted(CategorySerial).Equal(now) {
		t.Errorf("LastEmitted: got %v, want %v", th.LastEmitted(CategorySerial), now)
	}
}

func TestThrottleWithinIntervalSuppressed(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	emitted := 0
	for _, at := range []time.Time{now, now.Add(4*time.Minute + 59*time.Second)} {
		if th.Allow(CategoryServer, at) {
			emitted++
		}
	}
	if emitted != 1 {
		t.Errorf("emitted %d warnings, want 1", emitted)
	}
}

func TestThrottleAtIntervalAllowed(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	emitted := 0
	for _, at := range []time.Time{now, now.Add(5 * time.Minute)} {
		if th.Allow(CategoryServer, at) {
			emitted++
		}
	}
	if emitted != 2 {
		t.Errorf("emitted %d warnings, want 2", emitted)
	}
}

func TestThrottleSuppressedDoesNotResetWindow(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	th.Allow(CategorySerial, now)
	th.Allow(CategorySerial, now.Add(3*time.Minute)) // dropped
	if !th.Allow(CategorySerial, now.Add(5*time.Minute)) {
		t.Error("window should be measured from the last emission, not the last attempt")
	}
}

func TestThrottleCategoriesIndependent(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !th.Allow(CategorySerial, now) {
		t.Error("serial should be allowed")
	}
	if !th.Allow(CategoryDeviceInactive, now) {
		t.Error("device-inactive should be allowed independently")
	}
	if !th.Allow(CategoryServer, now.Add(time.Second)) {
		t.Error("server should be allowed independently")
	}
}
