package serialport

import (
	"errors"
	"sync"
	"time"
)

// FakeRead is one scripted ReadLine result.
type FakeRead struct {
	Line []byte
	Err  error
}

// FakePort is a test double that returns scripted reads and replies.
type FakePort struct {
	mu sync.Mutex

	// Reads are returned by ReadLine in order. Once exhausted, ReadLine
	// waits IdleDelay and returns an empty line, like a read timeout.
	Reads []FakeRead

	// IdleDelay paces ReadLine once Reads is exhausted.
	IdleDelay time.Duration

	// Replies maps a written command to the bytes the device answers with.
	Replies map[string][]byte

	// WriteErrors maps a written command to an error returned by Write.
	WriteErrors map[string]error

	// Written records every successful Write.
	Written [][]byte

	// Cleared counts ClearBuffers calls.
	Cleared int

	// Closed tracks if Close was called.
	Closed bool

	index     int
	available []byte
}

// NewFakePort creates a FakePort with the given scripted reads.
func NewFakePort(reads ...FakeRead) *FakePort {
	return &FakePort{
		Reads:     reads,
		IdleDelay: time.Millisecond,
	}
}

// ReadLine returns the next scripted read.
func (f *FakePort) ReadLine(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	if f.Closed {
		f.mu.Unlock()
		return nil, errors.New("fake port closed")
	}
	if f.index < len(f.Reads) {
		r := f.Reads[f.index]
		f.index++
		f.mu.Unlock()
		return r.Line, r.Err
	}
	delay := f.IdleDelay
	f.mu.Unlock()

	if delay > timeout {
		delay = timeout
	}
	time.Sleep(delay)
	return nil, nil
}

// ReadAvailable returns the reply queued by the last Write, if any.
func (f *FakePort) ReadAvailable(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.available
	f.available = nil
	return out, nil
}

// Write records b and queues the scripted reply for it.
func (f *FakePort) Write(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.WriteErrors[string(b)]; ok {
		return err
	}
	f.Written = append(f.Written, append([]byte(nil), b...))
	if reply, ok := f.Replies[string(b)]; ok {
		f.available = append(f.available, reply...)
	}
	return nil
}

// ClearBuffers drops any queued reply.
func (f *FakePort) ClearBuffers() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleared++
	f.available = nil
	return nil
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakePort) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

// WrittenCount returns the number of successful writes.
func (f *FakePort) WrittenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Written)
}

// FakeDevice is a test double for Device.
type FakeDevice struct {
	mu sync.Mutex

	// Available controls Probe and whether Open succeeds.
	Available bool

	// Ports are handed out by Open in order; the last one is reused.
	Ports []*FakePort

	// Probes and Opens count calls.
	Probes int
	Opens  int

	next int
}

// NewFakeDevice creates an available FakeDevice that hands out ports.
func NewFakeDevice(ports ...*FakePort) *FakeDevice {
	return &FakeDevice{Available: true, Ports: ports}
}

// Probe reports Available.
func (d *FakeDevice) Probe() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Probes++
	return d.Available
}

// Open returns the next port, or ErrPortUnavailable.
func (d *FakeDevice) Open() (Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opens++
	if !d.Available || len(d.Ports) == 0 {
		return nil, ErrPortUnavailable
	}
	p := d.Ports[d.next]
	if d.next < len(d.Ports)-1 {
		d.next++
	}
	return p, nil
}

// SetAvailable changes Available.
func (d *FakeDevice) SetAvailable(v bool) {
	d.mu.Lock()
	d.Available = v
	d.mu.Unlock()
}

// Counts returns the Probe and Open call counts.
func (d *FakeDevice) Counts() (probes, opens int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Probes, d.Opens
}
