// Package agent runs the relay: the reconnect loop that owns the serial
// port, the ingest loop that forwards scans, and the status monitor.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/scan-relay/internal/forward"
	"github.com/sweeney/scan-relay/internal/logic"
	"github.com/sweeney/scan-relay/internal/protocol"
	"github.com/sweeney/scan-relay/internal/report"
	"github.com/sweeney/scan-relay/internal/serialport"
	"github.com/sweeney/scan-relay/internal/status"
)

// ErrChannelLost ends the ingest loop when the device goes away.
var ErrChannelLost = errors.New("serial channel lost")

// Defaults for the zero values in Options.
const (
	DefaultReadTimeout    = time.Second
	DefaultIOErrorDelay   = time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Options wires an Agent. Device, Link, Transport and Reporter are required.
type Options struct {
	PortName string

	Device     serialport.Device
	Link       *serialport.Link
	Prober     *protocol.Prober
	Activity   *logic.ActivityTracker
	Suppressor *logic.Suppressor
	Transport  forward.Transport
	Reporter   *report.Reporter
	// Tracker, if set, supplies the status line logged after each check.
	Tracker *status.Tracker

	ReadTimeout    time.Duration
	IOErrorDelay   time.Duration
	ReconnectDelay time.Duration

	Now func() time.Time
	// Sleep waits d or until ctx ends, and reports whether the full wait elapsed.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Agent holds the shared state of the loops.
type Agent struct {
	portName   string
	device     serialport.Device
	link       *serialport.Link
	prober     *protocol.Prober
	activity   *logic.ActivityTracker
	suppressor *logic.Suppressor
	transport  forward.Transport
	reporter   *report.Reporter
	tracker    *status.Tracker

	readTimeout    time.Duration
	ioErrorDelay   time.Duration
	reconnectDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates an Agent, filling in defaults for optional fields.
func New(opts Options) *Agent {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.IOErrorDelay <= 0 {
		opts.IOErrorDelay = DefaultIOErrorDelay
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Prober == nil {
		opts.Prober = protocol.NewProber(protocol.DefaultConfig(), opts.Reporter)
	}
	if opts.Activity == nil {
		opts.Activity = logic.NewActivityTracker(logic.ActivityConfig{
			Policy:              logic.PolicyRecency,
			Window:              5 * time.Minute,
			HealthCheckInterval: 2 * time.Minute,
		}, opts.Now())
	}
	if opts.Suppressor == nil {
		opts.Suppressor = logic.NewSuppressor()
	}
	return &Agent{
		portName:       opts.PortName,
		device:         opts.Device,
		link:           opts.Link,
		prober:         opts.Prober,
		activity:       opts.Activity,
		suppressor:     opts.Suppressor,
		transport:      opts.Transport,
		reporter:       opts.Reporter,
		tracker:        opts.Tracker,
		readTimeout:    opts.ReadTimeout,
		ioErrorDelay:   opts.IOErrorDelay,
		reconnectDelay: opts.ReconnectDelay,
		now:            opts.Now,
		sleep:          opts.Sleep,
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
