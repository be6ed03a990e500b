package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/scan-relay/internal/logic"
	"github.com/sweeney/scan-relay/internal/protocol"
	"github.com/sweeney/scan-relay/internal/serialport"
)

// Ingest reads lines from the link and forwards each new payload. It
// returns ctx.Err() on cancellation and ErrChannelLost when the device
// disappears. Other read errors are logged and retried after a pause.
func (a *Agent) Ingest(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := a.link.ReadLine(a.readTimeout)
		if err != nil {
			if errors.Is(err, serialport.ErrNotOpen) || serialport.IsDisconnect(err) {
				return fmt.Errorf("%w: %w", ErrChannelLost, err)
			}
			a.reporter.Error("serial", fmt.Sprintf("serial read failed: %v", err))
			if !a.sleep(ctx, a.ioErrorDelay) {
				return ctx.Err()
			}
			continue
		}

		line := string(raw)
		if line == "" {
			continue
		}
		if protocol.IsProbeResponse(line) {
			a.reporter.Debug(fmt.Sprintf("ignoring health-check reply on scan channel: %q", line))
			continue
		}
		a.handleLine(ctx, line)
	}
}

func (a *Agent) handleLine(ctx context.Context, line string) {
	payloads := logic.SplitPayloads(line)
	if len(payloads) == 0 {
		return
	}
	a.activity.MarkReceived(a.now())

	for _, p := range payloads {
		if !a.suppressor.ShouldForward(p) {
			a.reporter.ScanReceived(p, true)
			continue
		}
		a.reporter.ScanReceived(p, false)
		a.reporter.SendResult(p, a.transport.Forward(ctx, p))
	}
}
