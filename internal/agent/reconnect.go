package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/scan-relay/internal/logic"
)

// Run owns the serial port until ctx is cancelled: it opens the port,
// runs an initial health check, ingests until the channel is lost, then
// closes the port and starts over after the reconnect delay.
func (a *Agent) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if !a.device.Probe() {
			a.reporter.Debug(fmt.Sprintf("serial port %s unavailable, retrying in %v", a.portName, a.reconnectDelay))
			a.reporter.MaybeWarn(logic.CategorySerial, "Serial port",
				fmt.Sprintf("serial port %s is not available", a.portName))
			a.sleep(ctx, a.reconnectDelay)
			continue
		}

		port, err := a.device.Open()
		if err != nil {
			a.reporter.Error("serial", fmt.Sprintf("open %s: %v", a.portName, err))
			a.sleep(ctx, a.reconnectDelay)
			continue
		}
		a.link.Attach(port)
		a.reporter.Success(fmt.Sprintf("serial port %s opened", a.portName))

		if !a.probeScanner() {
			a.reporter.Warning("Scanner", "initial health check got no response")
		}

		err = a.Ingest(ctx)

		if p := a.link.Detach(); p != nil {
			if cerr := p.Close(); cerr != nil {
				a.reporter.Debug(fmt.Sprintf("close %s: %v", a.portName, cerr))
			}
		}
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, ErrChannelLost) {
			a.reporter.Error("serial", fmt.Sprintf("serial port %s lost: %v", a.portName, err))
		}
		a.reporter.Reconnected()
		a.sleep(ctx, a.reconnectDelay)
	}
	a.reporter.Info("serial loop stopped")
	return ctx.Err()
}
