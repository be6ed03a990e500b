// Package status provides a thread-safe status tracker for the scan-relay agent.
// It is read by the HTTP handlers, the MQTT publisher and --print-state.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/scan-relay/internal/logic"
)

// Config contains agent configuration for display.
type Config struct {
	AgentID               string
	Hostname              string
	SerialPort            string
	Baud                  int
	ServerURL             string
	Policy                string
	CheckIntervalMs       int64
	HealthCheckIntervalMs int64
	ActivityTimeoutMs     int64
	WarningIntervalMs     int64
	Broker                string
	HTTPAddr              string
}

// Counters are in-memory diagnostics. They reset on restart.
type Counters struct {
	Received            int
	Forwarded           int
	Duplicates          int
	ForwardFailures     int
	HealthChecks        int
	HealthCheckFailures int
	Reconnects          int
}

// Snapshot is a point-in-time view of agent state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Health is the latest monitor result; HasHealth is false until the
	// first monitor tick completes.
	Health        logic.HealthSnapshot
	HasHealth     bool
	State         logic.AgentState
	Counts        Counters
	LastPayload   string
	LastScan      time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the agent started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Healthy reports whether the latest monitor tick found everything OK.
func (s Snapshot) Healthy() bool {
	return s.HasHealth && s.Health.AllOK()
}

// Tracker holds mutable agent state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetHealth records the latest monitor result.
func (t *Tracker) SetHealth(h logic.HealthSnapshot) {
	t.mu.Lock()
	t.snap.Health = h
	t.snap.HasHealth = true
	t.snap.State = h.State()
	t.mu.Unlock()
}

// RecordScan counts a received payload. Duplicates are counted but do not
// replace the last forwarded payload.
func (t *Tracker) RecordScan(payload string, at time.Time, duplicate bool) {
	t.mu.Lock()
	t.snap.Counts.Received++
	t.snap.LastScan = at
	if duplicate {
		t.snap.Counts.Duplicates++
	} else {
		t.snap.LastPayload = payload
	}
	t.mu.Unlock()
}

// RecordForward counts a forward attempt.
func (t *Tracker) RecordForward(ok bool) {
	t.mu.Lock()
	if ok {
		t.snap.Counts.Forwarded++
	} else {
		t.snap.Counts.ForwardFailures++
	}
	t.mu.Unlock()
}

// RecordHealthCheck counts a protocol health check.
func (t *Tracker) RecordHealthCheck(ok bool) {
	t.mu.Lock()
	t.snap.Counts.HealthChecks++
	if !ok {
		t.snap.Counts.HealthCheckFailures++
	}
	t.mu.Unlock()
}

// RecordReconnect counts a channel reopen.
func (t *Tracker) RecordReconnect() {
	t.mu.Lock()
	t.snap.Counts.Reconnects++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the agent state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
