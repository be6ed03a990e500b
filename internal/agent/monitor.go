package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/scan-relay/internal/logic"
	"github.com/sweeney/scan-relay/internal/status"
)

// Monitor runs a health check immediately, then once per tick, until ctx
// is cancelled.
func (a *Agent) Monitor(ctx context.Context, tick <-chan time.Time) {
	a.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			a.runTick(ctx)
		}
	}
}

// runTick runs one pass. A panic anywhere in it, including the snapshot
// fan-out, is logged and the loop waits for the next tick.
func (a *Agent) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.reporter.Error("monitor", fmt.Sprintf("health check tick panicked: %v", r))
		}
	}()
	a.CheckHealth(ctx)
}

// CheckHealth runs one monitor pass and hands the snapshot to the reporter.
// A panicking check counts as failed; the remaining checks still run.
func (a *Agent) CheckHealth(ctx context.Context) logic.HealthSnapshot {
	now := a.now()

	serialOK := a.guard("serial probe", a.device.Probe)
	if !serialOK {
		a.reporter.MaybeWarn(logic.CategorySerial, "Serial port",
			fmt.Sprintf("serial port %s is not available", a.portName))
	}

	serverOK := a.guard("peer check", func() bool {
		return a.transport.CheckPeer(ctx)
	})
	if !serverOK {
		a.reporter.MaybeWarn(logic.CategoryServer, "Server", "server is unreachable")
	}

	var verdict logic.Verdict
	active := a.guard("activity check", func() bool {
		verdict = a.activity.Evaluate(now, a.link.IsOpen(), a.probeScanner)
		return verdict.Activity == logic.ActivityActive
	})
	if !active && (verdict.Warn || verdict.Activity == "") {
		a.reporter.MaybeWarn(logic.CategoryDeviceInactive, "Scanner",
			"scanner is not responding; check the cable and power")
	}

	snap := logic.HealthSnapshot{
		SerialOK:     serialOK,
		ServerOK:     serverOK,
		DeviceActive: active,
		Time:         now,
	}
	a.reporter.Health(ctx, snap)
	if a.tracker != nil {
		a.reporter.Info("status: " + status.Line(a.tracker.Snapshot()))
	}
	return snap
}

// probeScanner runs the protocol health check on the live handle.
func (a *Agent) probeScanner() bool {
	res := a.prober.RunOnLink(a.link)
	a.reporter.HealthCheck(res.OK)
	return res.OK
}

func (a *Agent) guard(name string, check func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.reporter.Error("monitor", fmt.Sprintf("%s panicked: %v", name, r))
			ok = false
		}
	}()
	return check()
}
