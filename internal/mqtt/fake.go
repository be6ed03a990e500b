package mqtt

import "sync"

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// HealthEvents contains all health snapshots that were published.
	HealthEvents []HealthEvent

	// HealthPayloads contains the JSON payloads for health snapshots.
	HealthPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishHealthError, if set, will be returned by PublishHealth.
	PublishHealthError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishHealth records the health snapshot.
func (f *FakePublisher) PublishHealth(event HealthEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishHealthError != nil {
		return f.PublishHealthError
	}

	payload, err := FormatHealthPayload(event)
	if err != nil {
		return err
	}
	f.HealthEvents = append(f.HealthEvents, event)
	f.HealthPayloads = append(f.HealthPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// HealthCount returns the number of recorded health snapshots.
func (f *FakePublisher) HealthCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.HealthEvents)
}

// SystemEventNames returns the recorded system event names in order.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HealthEvents = nil
	f.HealthPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishHealthError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
