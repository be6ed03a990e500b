// Command scan-relay reads barcode scans from a serial reader, forwards
// them to the server, and reports the health of the reader and the link.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/sweeney/scan-relay/internal/agent"
	"github.com/sweeney/scan-relay/internal/config"
	"github.com/sweeney/scan-relay/internal/forward"
	"github.com/sweeney/scan-relay/internal/gpio"
	"github.com/sweeney/scan-relay/internal/logger"
	"github.com/sweeney/scan-relay/internal/logic"
	"github.com/sweeney/scan-relay/internal/mqtt"
	"github.com/sweeney/scan-relay/internal/protocol"
	"github.com/sweeney/scan-relay/internal/report"
	"github.com/sweeney/scan-relay/internal/serialport"
	"github.com/sweeney/scan-relay/internal/status"
	"github.com/sweeney/scan-relay/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	id := agentID(hostname, cfg.Serial.Port)

	link := serialport.NewLink()
	device := serialport.NewRealDevice(serialport.Config{
		Name:        cfg.Serial.Port,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeout,
	}, link)
	client := forward.NewClient(forward.Config{
		BaseURL:       cfg.Server.Host,
		APIPath:       cfg.Server.APIPath,
		HealthLogPath: cfg.Server.HealthLogPath,
	})

	// Print state mode
	if cfg.PrintState {
		return printState(context.Background(), os.Stdout, device, client,
			protocol.NewProber(protocol.DefaultConfig(), nil))
	}

	lg, err := logger.New(logger.Config{
		Level:         cfg.Log.Level,
		Dir:           cfg.Log.Dir,
		SyslogAddress: cfg.Log.SyslogAddress,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, id, hostname))

	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:  cfg.MQTT.Broker,
			AgentID: id,
			Log:     lg.SugaredLogger,
		})
		if err != nil {
			lg.Warnw("mqtt disabled", "err", err)
		} else {
			publisher = p
			defer p.Close()
		}
	}

	var led gpio.LED
	if cfg.LEDPin != gpio.Disabled {
		l, err := gpio.NewRealLED(gpio.DefaultChip, cfg.LEDPin)
		if err != nil {
			lg.Warnw("status LED disabled", "pin", cfg.LEDPin, "err", err)
		} else {
			led = l
			defer l.Close()
		}
	}

	rep := report.New(report.Options{
		Log:       lg,
		Throttle:  logic.NewThrottle(cfg.Monitor.WarningInterval),
		AgentID:   id,
		Hostname:  hostname,
		Transport: client,
		Publisher: publisher,
		Tracker:   tracker,
		LED:       led,
	})

	a := agent.New(agent.Options{
		PortName: cfg.Serial.Port,
		Device:   device,
		Link:     link,
		Prober:   protocol.NewProber(protocol.DefaultConfig(), rep),
		Activity: logic.NewActivityTracker(logic.ActivityConfig{
			Policy:              cfg.Monitor.ActivityPolicy,
			Window:              cfg.Monitor.ActivityTimeout,
			HealthCheckInterval: cfg.Monitor.HealthCheckInterval,
		}, time.Now()),
		Suppressor:     logic.NewSuppressor(),
		Transport:      client,
		Reporter:       rep,
		Tracker:        tracker,
		ReadTimeout:    cfg.Serial.ReadTimeout,
		ReconnectDelay: cfg.Monitor.ReconnectDelay,
	})

	publishSystem(publisher, tracker, rep, mqtt.EventStartup, "", time.Now())

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rep.Error("http", fmt.Sprintf("http server error: %v", err))
			}
		}()
		defer srv.Shutdown(context.Background())
		rep.Info(fmt.Sprintf("http status server listening on %s", cfg.HTTPAddr))
	}

	rep.Info(fmt.Sprintf("started: agent=%s port=%s server=%s policy=%s check=%v",
		id, cfg.Serial.Port, client.APIURL(), cfg.Monitor.ActivityPolicy, cfg.Monitor.CheckInterval))

	ticker := time.NewTicker(cfg.Monitor.CheckInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(a, publisher, tracker, rep, time.Now, ticker.C, sigCh)
}

// runLoop runs the serial loop and the monitor until a signal arrives,
// then stops both and publishes SHUTDOWN.
func runLoop(a *agent.Agent, publisher mqtt.Publisher, tracker *status.Tracker, rep *report.Reporter, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.Monitor(ctx, tick)
	}()

	s := <-sig
	name := signalName(s)
	rep.Info(fmt.Sprintf("received %s, shutting down", name))
	cancel()
	wg.Wait()

	publishSystem(publisher, tracker, rep, mqtt.EventShutdown, name, now())
	return nil
}

// publishSystem sends a retained lifecycle event carrying the full status.
func publishSystem(publisher mqtt.Publisher, tracker *status.Tracker, rep *report.Reporter, event, reason string, at time.Time) {
	if publisher == nil {
		return
	}
	e := mqtt.SystemEvent{
		Timestamp: at,
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
			tracker.SetMQTTConnected(cs.IsConnected())
		}
		e.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), event, reason)
	}
	if err := publisher.PublishSystem(e); err != nil {
		rep.Error("mqtt", fmt.Sprintf("failed to publish %s event: %v", event, err))
		return
	}
	rep.Debug(fmt.Sprintf("published %s event", event))
}

// printState checks the port, the scanner and the server once and prints
// the status line.
func printState(ctx context.Context, w io.Writer, device serialport.Device, transport forward.Transport, prober *protocol.Prober) error {
	snap := logic.HealthSnapshot{
		SerialOK: device.Probe(),
		ServerOK: transport.CheckPeer(ctx),
		Time:     time.Now(),
	}
	if snap.SerialOK {
		port, err := device.Open()
		if err == nil {
			snap.DeviceActive = prober.Run(port).OK
			_ = port.Close()
		}
	}

	tracker := status.NewTracker(snap.Time, status.Config{})
	tracker.SetHealth(snap)
	_, err := fmt.Fprintln(w, status.Line(tracker.Snapshot()))
	return err
}

// agentID is stable for a given host and port so retained MQTT topics
// survive restarts.
func agentID(hostname, port string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(hostname+":"+port)).String()
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func statusConfig(cfg config.Config, id, hostname string) status.Config {
	return status.Config{
		AgentID:               id,
		Hostname:              hostname,
		SerialPort:            cfg.Serial.Port,
		Baud:                  cfg.Serial.Baud,
		ServerURL:             cfg.Server.Host,
		Policy:                string(cfg.Monitor.ActivityPolicy),
		CheckIntervalMs:       cfg.Monitor.CheckInterval.Milliseconds(),
		HealthCheckIntervalMs: cfg.Monitor.HealthCheckInterval.Milliseconds(),
		ActivityTimeoutMs:     cfg.Monitor.ActivityTimeout.Milliseconds(),
		WarningIntervalMs:     cfg.Monitor.WarningInterval.Milliseconds(),
		Broker:                cfg.MQTT.Broker,
		HTTPAddr:              cfg.HTTPAddr,
	}
}
