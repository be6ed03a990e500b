package serialport

import (
	"bytes"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultReadTimeout bounds every read so a silent reader never blocks forever.
const DefaultReadTimeout = time.Second

// rawPort is the subset of serial.Port the channel uses.
type rawPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	ResetOutputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// RealDevice opens an actual serial line.
type RealDevice struct {
	cfg  Config
	link *Link
	open func(name string, mode *serial.Mode) (rawPort, error)
}

// NewRealDevice creates a device for the given line. If link is non-nil,
// Probe consults it instead of opening a port that is already in use.
func NewRealDevice(cfg Config, link *Link) *RealDevice {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &RealDevice{
		cfg:  cfg,
		link: link,
		open: func(name string, mode *serial.Mode) (rawPort, error) {
			return serial.Open(name, mode)
		},
	}
}

// Probe opens the port and closes it immediately. The serial library opens
// ports exclusively, so while the link holds a live handle the probe
// reports that instead.
func (d *RealDevice) Probe() bool {
	if d.link != nil && d.link.IsOpen() {
		return true
	}
	p, err := d.open(d.cfg.Name, d.mode())
	if err != nil {
		return false
	}
	_ = p.Close()
	return true
}

// Open opens the port with 8N1 framing and a bounded read timeout.
func (d *RealDevice) Open() (Port, error) {
	p, err := d.open(d.cfg.Name, d.mode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", d.cfg.Name, ErrPortUnavailable, err)
	}
	if err := p.SetReadTimeout(d.cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w: %w", d.cfg.Name, ErrPortUnavailable, err)
	}
	return newSerialPort(p, d.cfg.ReadTimeout), nil
}

func (d *RealDevice) mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: d.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// serialPort adapts a raw port to line-oriented reads.
type serialPort struct {
	raw         rawPort
	readTimeout time.Duration
	timeout     time.Duration // currently configured on raw
	pending     []byte        // bytes read past the last returned line
	lastRx      time.Time     // when pending last grew
	flushAfter  time.Duration // idle gap after which a partial line is returned
	now         func() time.Time
}

func newSerialPort(raw rawPort, readTimeout time.Duration) *serialPort {
	return &serialPort{
		raw:         raw,
		readTimeout: readTimeout,
		timeout:     readTimeout,
		flushAfter:  2 * readTimeout,
		now:         time.Now,
	}
}

func (p *serialPort) ReadLine(timeout time.Duration) ([]byte, error) {
	if line, ok := p.takeLine(); ok {
		return line, nil
	}

	deadline := p.now().Add(timeout)
	buf := make([]byte, 256)
	for {
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			return p.takeStale(), nil
		}
		if err := p.setTimeout(remaining); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrChannelIO, err)
		}

		n, err := p.raw.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrChannelIO, err)
		}
		if n == 0 {
			continue
		}
		p.pending = append(p.pending, buf[:n]...)
		p.lastRx = p.now()
		if line, ok := p.takeLine(); ok {
			return line, nil
		}
	}
}

func (p *serialPort) ReadAvailable(timeout time.Duration) ([]byte, error) {
	out := p.pending
	p.pending = nil

	if err := p.setTimeout(timeout); err != nil {
		return out, fmt.Errorf("%w: %w", ErrChannelIO, err)
	}
	buf := make([]byte, 256)
	n, err := p.raw.Read(buf)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrChannelIO, err)
	}
	return append(out, buf[:n]...), nil
}

func (p *serialPort) Write(b []byte) error {
	for len(b) > 0 {
		n, err := p.raw.Write(b)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrChannelIO, err)
		}
		b = b[n:]
	}
	return nil
}

func (p *serialPort) ClearBuffers() error {
	p.pending = nil
	if err := p.raw.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: reset input: %w", ErrChannelIO, err)
	}
	if err := p.raw.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("%w: reset output: %w", ErrChannelIO, err)
	}
	return nil
}

func (p *serialPort) Close() error {
	return p.raw.Close()
}

func (p *serialPort) setTimeout(t time.Duration) error {
	if t == p.timeout {
		return nil
	}
	if err := p.raw.SetReadTimeout(t); err != nil {
		return err
	}
	p.timeout = t
	return nil
}

// takeLine pops the first complete line from pending.
func (p *serialPort) takeLine() ([]byte, bool) {
	i := bytes.IndexByte(p.pending, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i)
	copy(line, p.pending[:i])
	p.pending = p.pending[i+1:]
	if len(p.pending) == 0 {
		p.pending = nil
	}
	return trimEOL(line), true
}

// takeStale returns a partial line once the reader has gone quiet for
// flushAfter. A fresher partial stays in pending for the next call.
func (p *serialPort) takeStale() []byte {
	if len(p.pending) == 0 || p.now().Sub(p.lastRx) < p.flushAfter {
		return nil
	}
	line := trimEOL(p.pending)
	p.pending = nil
	return line
}

func trimEOL(b []byte) []byte {
	return bytes.TrimRight(b, "\r\n")
}
