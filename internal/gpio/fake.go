package gpio

import "sync"

// FakeLED is a test double that records every value set.
type FakeLED struct {
	mu sync.Mutex

	// Values contains every value passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLED creates a FakeLED.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// Set records on.
func (f *FakeLED) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	return nil
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Last returns the most recent value and whether any was set.
func (f *FakeLED) Last() (on, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return false, false
	}
	return f.Values[len(f.Values)-1], true
}
