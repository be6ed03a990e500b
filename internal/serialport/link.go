package serialport

import (
	"sync"
	"sync/atomic"
	"time"
)

// Link holds the single live handle. Only the reconnect loop attaches and
// detaches it; readers and the health check borrow it through ReadLine and
// Use, which never overlap.
type Link struct {
	mu   sync.Mutex
	port Port
	open atomic.Bool
}

// NewLink creates an empty link.
func NewLink() *Link {
	return &Link{}
}

// Attach makes p the live handle.
func (l *Link) Attach(p Port) {
	l.mu.Lock()
	l.port = p
	l.open.Store(p != nil)
	l.mu.Unlock()
}

// Detach removes and returns the live handle, waiting for any borrower to
// finish. The caller is responsible for closing it.
func (l *Link) Detach() Port {
	l.open.Store(false)
	l.mu.Lock()
	p := l.port
	l.port = nil
	l.mu.Unlock()
	return p
}

// IsOpen reports whether a handle is attached. It never blocks.
func (l *Link) IsOpen() bool {
	return l.open.Load()
}

// ReadLine reads one line from the live handle.
func (l *Link) ReadLine(timeout time.Duration) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil, ErrNotOpen
	}
	return l.port.ReadLine(timeout)
}

// Use runs fn with exclusive access to the live handle.
func (l *Link) Use(fn func(Port) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return ErrNotOpen
	}
	return fn(l.port)
}
