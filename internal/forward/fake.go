package forward

import (
	"context"
	"sync"
)

// Fake records forwarded payloads and health logs for test assertions.
type Fake struct {
	mu sync.Mutex

	// Forwarded contains every payload passed to Forward, including failed ones.
	Forwarded []string

	// HealthLogs contains every health log posted.
	HealthLogs []HealthLog

	// ForwardError, if set, is returned by Forward.
	ForwardError error

	// HealthLogError, if set, is returned by PostHealthLog.
	HealthLogError error

	// Reachable is returned by CheckPeer.
	Reachable bool

	// PeerChecks counts CheckPeer calls.
	PeerChecks int

	// CheckPeerFunc, if set, replaces Reachable.
	CheckPeerFunc func() bool
}

// NewFake creates a Fake whose peer is reachable.
func NewFake() *Fake {
	return &Fake{Reachable: true}
}

// Forward records payload.
func (f *Fake) Forward(ctx context.Context, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Forwarded = append(f.Forwarded, payload)
	return f.ForwardError
}

// CheckPeer returns Reachable, or the result of CheckPeerFunc.
func (f *Fake) CheckPeer(ctx context.Context) bool {
	f.mu.Lock()
	f.PeerChecks++
	fn := f.CheckPeerFunc
	reachable := f.Reachable
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return reachable
}

// PostHealthLog records entry.
func (f *Fake) PostHealthLog(ctx context.Context, entry HealthLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HealthLogError != nil {
		return f.HealthLogError
	}
	f.HealthLogs = append(f.HealthLogs, entry)
	return nil
}

// ForwardedPayloads returns a copy of Forwarded.
func (f *Fake) ForwardedPayloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Forwarded...)
}

// HealthLogCount returns the number of recorded health logs.
func (f *Fake) HealthLogCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.HealthLogs)
}

// SetReachable changes Reachable.
func (f *Fake) SetReachable(v bool) {
	f.mu.Lock()
	f.Reachable = v
	f.mu.Unlock()
}
