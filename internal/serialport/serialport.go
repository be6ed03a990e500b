// Package serialport provides the scanner's serial channel with hardware abstraction.
// The real implementation uses go.bug.st/serial.
// The fake implementation allows testing without a device attached.
package serialport

import (
	"errors"
	"strings"
	"time"

	"go.bug.st/serial"
)

var (
	// ErrPortUnavailable means the port is not present or cannot be opened.
	ErrPortUnavailable = errors.New("serial port unavailable")

	// ErrChannelIO means a read or write failed on an open port.
	ErrChannelIO = errors.New("serial channel i/o error")

	// ErrNotOpen means no handle is attached to the link.
	ErrNotOpen = errors.New("serial channel not open")
)

// Port is an open serial handle.
type Port interface {
	// ReadLine reads until a line terminator or until timeout elapses.
	// On timeout it returns nil and a nil error. A partial line is held
	// for the next call until the reader has been idle long enough, then
	// returned as is. The terminator is stripped.
	ReadLine(timeout time.Duration) ([]byte, error)

	// ReadAvailable returns the bytes that arrive within timeout.
	ReadAvailable(timeout time.Duration) ([]byte, error)

	// Write sends all of b.
	Write(b []byte) error

	// ClearBuffers discards unread input and unsent output.
	ClearBuffers() error

	// Close releases the port.
	Close() error
}

// Device opens ports for one configured serial line.
type Device interface {
	// Probe reports whether the port is present and openable.
	Probe() bool

	// Open returns a new handle, or an error wrapping ErrPortUnavailable.
	Open() (Port, error)
}

// Config identifies a serial line.
type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// IsDisconnect reports whether err means the device went away, as opposed
// to a transient read failure.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}

	// The library returns *PortError, but match the value form too.
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return isDisconnectCode(portErr.Code())
	}
	var portErrVal serial.PortError
	if errors.As(err, &portErrVal) {
		return isDisconnectCode(portErrVal.Code())
	}

	// OS-level errors are not wrapped by the serial library.
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "device not configured") ||
		strings.Contains(s, "input/output error") ||
		strings.Contains(s, "no such device") ||
		strings.Contains(s, "device not found") ||
		strings.Contains(s, "bad file descriptor") ||
		strings.Contains(s, "access is denied")
}

func isDisconnectCode(code serial.PortErrorCode) bool {
	switch code {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
