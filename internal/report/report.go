// Package report turns agent events into log lines, warnings and health
// notifications. It is the one place that knows which sinks exist.
package report

import (
	"context"
	"strings"
	"time"

	"github.com/sweeney/scan-relay/internal/forward"
	"github.com/sweeney/scan-relay/internal/gpio"
	"github.com/sweeney/scan-relay/internal/logger"
	"github.com/sweeney/scan-relay/internal/logic"
	"github.com/sweeney/scan-relay/internal/mqtt"
	"github.com/sweeney/scan-relay/internal/status"
)

// Scan event names written to the scan log.
const (
	EventScanReceived  = "SCAN_RECEIVED"
	EventDuplicateScan = "DUPLICATE_SCAN"
	EventSendSuccess   = "SEND_SUCCESS"
	EventSendFailed    = "SEND_FAILED"
)

// Options wires the sinks. Only Log and Throttle are required.
type Options struct {
	Log      *logger.Logger
	Throttle *logic.Throttle

	AgentID  string
	Hostname string

	// Transport receives health logs when a snapshot has errors.
	Transport forward.Transport
	// Publisher receives every snapshot.
	Publisher mqtt.Publisher
	Tracker   *status.Tracker
	LED       gpio.LED

	Now func() time.Time
}

// Reporter is safe for concurrent use; the ingest loop and the monitor
// share one.
type Reporter struct {
	log       *logger.Logger
	throttle  *logic.Throttle
	agentID   string
	hostname  string
	transport forward.Transport
	publisher mqtt.Publisher
	tracker   *status.Tracker
	led       gpio.LED
	now       func() time.Time
}

// New creates a Reporter.
func New(opts Options) *Reporter {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Throttle == nil {
		opts.Throttle = logic.NewThrottle(5 * time.Minute)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reporter{
		log:       opts.Log,
		throttle:  opts.Throttle,
		agentID:   opts.AgentID,
		hostname:  opts.Hostname,
		transport: opts.Transport,
		publisher: opts.Publisher,
		tracker:   opts.Tracker,
		led:       opts.LED,
		now:       opts.Now,
	}
}

// Info logs an informational message.
func (r *Reporter) Info(msg string) {
	r.log.Infow(msg)
}

// Success logs a positive outcome.
func (r *Reporter) Success(msg string) {
	r.log.Infow(msg, "result", "success")
}

// Error logs a failure of the given kind.
func (r *Reporter) Error(kind, msg string) {
	r.log.Errorw(msg, "kind", kind)
}

// Warning logs a user-facing warning. Callers that may repeat should use MaybeWarn.
func (r *Reporter) Warning(title, msg string) {
	r.log.Warnw(msg, "title", title)
}

// Debug logs a diagnostic message.
func (r *Reporter) Debug(msg string) {
	r.log.Debugw(msg)
}

// MaybeWarn emits a warning unless one of the same category was emitted
// within the warning interval. It reports whether the warning was emitted.
func (r *Reporter) MaybeWarn(category, title, msg string) bool {
	if !r.throttle.Allow(category, r.now()) {
		r.log.Debugw("warning throttled", "category", category, "title", title)
		return false
	}
	r.Warning(title, msg)
	return true
}

// ScanReceived records one received payload.
func (r *Reporter) ScanReceived(payload string, duplicate bool) {
	event := EventScanReceived
	if duplicate {
		event = EventDuplicateScan
		r.log.Infow("duplicate scan ignored", "payload", payload)
	} else {
		r.log.Debugw("scan received", "payload", payload)
	}
	r.log.Scans.Infow(event, "payload", payload)
	if r.tracker != nil {
		r.tracker.RecordScan(payload, r.now(), duplicate)
	}
}

// SendResult records the outcome of forwarding payload.
func (r *Reporter) SendResult(payload string, err error) {
	if err != nil {
		r.log.Errorw("forward failed", "kind", "send", "payload", payload, "err", err)
		r.log.Scans.Infow(EventSendFailed, "payload", payload, "err", err)
	} else {
		r.log.Infow("forwarded", "payload", payload, "result", "success")
		r.log.Scans.Infow(EventSendSuccess, "payload", payload)
	}
	if r.tracker != nil {
		r.tracker.RecordForward(err == nil)
	}
}

// HealthCheck records the outcome of one protocol health check.
func (r *Reporter) HealthCheck(ok bool) {
	if r.tracker != nil {
		r.tracker.RecordHealthCheck(ok)
	}
}

// Reconnected records that the serial channel was reopened.
func (r *Reporter) Reconnected() {
	if r.tracker != nil {
		r.tracker.RecordReconnect()
	}
}

// Health fans a monitor snapshot out to every sink. Sink failures are
// logged and never propagate.
func (r *Reporter) Health(ctx context.Context, snap logic.HealthSnapshot) {
	errs := snap.Errors()
	if len(errs) == 0 {
		r.log.Infow("system health check: all systems OK")
	} else {
		r.log.Errorw("system health errors detected", "kind", "health", "errors", strings.Join(errs, ", "))
		r.postHealthLog(ctx, snap, errs)
	}

	if r.tracker != nil {
		r.tracker.SetHealth(snap)
		if cs, ok := r.publisher.(mqtt.ConnectionStatus); ok {
			r.tracker.SetMQTTConnected(cs.IsConnected())
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishHealth(mqtt.HealthEvent{Health: snap}); err != nil {
			r.log.Warnw("mqtt health publish failed", "err", err)
		}
	}

	if r.led != nil {
		if err := r.led.Set(snap.AllOK()); err != nil {
			r.log.Warnw("status LED update failed", "err", err)
		}
	}
}

func (r *Reporter) postHealthLog(ctx context.Context, snap logic.HealthSnapshot, errs []string) {
	if r.transport == nil {
		return
	}
	entry := forward.HealthLog{
		Type:      forward.HealthLogType,
		AgentID:   r.agentID,
		Hostname:  r.hostname,
		Timestamp: snap.Time.Format(time.RFC3339),
		Errors:    errs,
		Status: forward.HealthLogStatus{
			SerialPort:       okOr(snap.SerialOK, "ERROR"),
			ServerConnection: okOr(snap.ServerOK, "ERROR"),
			Scanner:          okOr(snap.DeviceActive, "INACTIVE"),
		},
	}
	if err := r.transport.PostHealthLog(ctx, entry); err != nil {
		r.log.Errorw("health log post failed", "kind", "health-log", "err", err)
		return
	}
	r.log.Infow("health log posted", "errors", len(errs), "result", "success")
}

func okOr(ok bool, bad string) string {
	if ok {
		return "OK"
	}
	return bad
}
