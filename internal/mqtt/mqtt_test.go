package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/scan-relay/internal/logic"
	"go.uber.org/zap"
)

func TestTopics(t *testing.T) {
	if got := HealthTopic("abc"); got != "scan-relay/abc/health" {
		t.Errorf("HealthTopic: got %q", got)
	}
	if got := SystemTopic("abc"); got != "scan-relay/abc/system" {
		t.Errorf("SystemTopic: got %q", got)
	}
}

func TestFormatHealthPayload(t *testing.T) {
	event := HealthEvent{Health: logic.HealthSnapshot{
		SerialOK:     true,
		ServerOK:     false,
		DeviceActive: true,
		Time:         time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
	}}

	payload, err := FormatHealthPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed HealthPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	h := parsed.Health
	if h.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", h.Timestamp)
	}
	if h.Healthy {
		t.Error("expected healthy=false")
	}
	if h.Serial != "OPEN" || h.Scanner != "ACTIVE" || h.Server != "UNREACHABLE" {
		t.Errorf("states: %+v", h)
	}
	if len(h.Errors) != 1 || h.Errors[0] != "SERVER_CONNECTION_ERROR" {
		t.Errorf("errors: %v", h.Errors)
	}
}

func TestFormatHealthPayloadAllOKHasEmptyErrors(t *testing.T) {
	payload, err := FormatHealthPayload(HealthEvent{Health: logic.HealthSnapshot{SerialOK: true, ServerOK: true, DeviceActive: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	errs, ok := raw["health"]["errors"].([]any)
	if !ok || len(errs) != 0 {
		t.Errorf("errors should be [], got %v", raw["health"]["errors"])
	}
}

func TestFormatHealthPayloadRaw(t *testing.T) {
	raw := []byte(`{"custom":1}`)
	got, _ := FormatHealthPayload(HealthEvent{RawPayload: raw})
	if string(got) != string(raw) {
		t.Errorf("raw payload: got %s", got)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	}
	got, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	got, err := FormatSystemPayload(SystemEvent{Event: EventShutdown, Reason: ReasonMQTTDisconnect})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 7, 0, 0, 0, loc),
		Event:     EventStartup,
	}
	got, _ := FormatSystemPayload(event)

	var parsed SystemPayload
	if err := json.Unmarshal(got, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("timestamp should be UTC, got %s", parsed.System.Timestamp)
	}
	if parsed.System.Reason != "" {
		t.Errorf("startup should omit reason, got %q", parsed.System.Reason)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishHealth(HealthEvent{Health: logic.HealthSnapshot{SerialOK: true}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: EventStartup, Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.HealthCount() != 1 || len(f.HealthPayloads) != 1 {
		t.Errorf("expected 1 health event, got %d", f.HealthCount())
	}
	if names := f.SystemEventNames(); len(names) != 1 || names[0] != EventStartup {
		t.Errorf("system events: %v", names)
	}
	if !f.SystemEvents[0].Retained {
		t.Error("retained flag should be recorded")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishHealthError = errors.New("health failed")
	f.PublishSystemError = errors.New("system failed")

	if err := f.PublishHealth(HealthEvent{}); err == nil {
		t.Error("expected health error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected system error")
	}
	if f.HealthCount() != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishHealth(HealthEvent{})
	f.PublishSystem(SystemEvent{Event: EventStartup})
	f.Connected = true
	f.Close()

	f.Reset()
	if f.HealthCount() != 0 || len(f.SystemEvents) != 0 || f.Closed || f.Connected {
		t.Error("Reset should clear all state")
	}
}

// newTestPublisher builds a RealPublisher without a broker; sends are recorded.
func newTestPublisher(sendErr *error) (*RealPublisher, *[]bufferedMsg) {
	var sent []bufferedMsg
	p := &RealPublisher{
		agentID: "abc",
		log:     zap.NewNop().Sugar(),
		now:     func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
		buf:     newRingBuffer(10, nil),
	}
	p.send = func(msg bufferedMsg) error {
		if sendErr != nil && *sendErr != nil {
			return *sendErr
		}
		sent = append(sent, msg)
		return nil
	}
	return p, &sent
}

func TestRealPublisherBuffersUntilConnected(t *testing.T) {
	p, sent := newTestPublisher(nil)

	p.PublishSystem(SystemEvent{Event: EventStartup, Retained: true})
	p.PublishHealth(HealthEvent{Health: logic.HealthSnapshot{SerialOK: true}})
	p.PublishHealth(HealthEvent{Health: logic.HealthSnapshot{SerialOK: false}})
	if len(*sent) != 0 {
		t.Fatalf("nothing should be sent while disconnected, got %d", len(*sent))
	}

	p.handleConnect()
	if !p.IsConnected() {
		t.Error("expected connected after handleConnect")
	}
	// STARTUP plus one coalesced health snapshot; no RECONNECTED on first connect.
	if len(*sent) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(*sent))
	}
	if (*sent)[0].topic != "scan-relay/abc/system" || (*sent)[0].qos != 1 {
		t.Errorf("first replay: %+v", (*sent)[0])
	}
	if (*sent)[1].topic != "scan-relay/abc/health" || !(*sent)[1].retained {
		t.Errorf("second replay: %+v", (*sent)[1])
	}
	var hp HealthPayload
	json.Unmarshal((*sent)[1].payload, &hp)
	if hp.Health.Serial != "CLOSED" {
		t.Errorf("replayed health should be the newest snapshot, got %+v", hp.Health)
	}
}

func TestRealPublisherReconnectedEvent(t *testing.T) {
	p, sent := newTestPublisher(nil)
	p.handleConnect()
	p.handleConnectionLost(errors.New("broker went away"))
	if p.IsConnected() {
		t.Error("expected disconnected")
	}

	p.PublishSystem(SystemEvent{Event: EventShutdown})
	p.handleConnect()

	if len(*sent) != 2 {
		t.Fatalf("expected RECONNECTED and one replay, got %d", len(*sent))
	}
	var sp SystemPayload
	json.Unmarshal((*sent)[0].payload, &sp)
	if sp.System.Event != EventReconnected {
		t.Errorf("first message after reconnect: got %q, want RECONNECTED", sp.System.Event)
	}
}

func TestRealPublisherFailedSendIsBuffered(t *testing.T) {
	sendErr := errors.New("publish timeout")
	p, sent := newTestPublisher(&sendErr)
	p.connected = true
	p.everConnected = true

	if err := p.PublishSystem(SystemEvent{Event: EventStartup}); err == nil {
		t.Error("expected send error")
	}
	if p.buf.len() != 1 {
		t.Errorf("failed message should be buffered, len=%d", p.buf.len())
	}

	sendErr = nil
	p.handleConnect()
	if len(*sent) != 2 {
		t.Errorf("expected RECONNECTED and replay, got %d", len(*sent))
	}
}

func TestRealPublisherReplayPrecedesNewPublishes(t *testing.T) {
	p, sent := newTestPublisher(nil)
	p.PublishSystem(SystemEvent{Event: EventStartup})
	p.PublishSystem(SystemEvent{Event: EventShutdown, Reason: "SIGTERM"})

	record := p.send
	published := false
	p.send = func(msg bufferedMsg) error {
		if !published {
			// Arrives while the buffer is still being replayed.
			published = true
			if err := p.PublishSystem(SystemEvent{Event: EventReconnected}); err != nil {
				t.Errorf("publish during replay: %v", err)
			}
		}
		return record(msg)
	}

	p.handleConnect()

	if len(*sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(*sent))
	}
	var want = []string{EventStartup, EventShutdown, EventReconnected}
	for i, msg := range *sent {
		var sp SystemPayload
		json.Unmarshal(msg.payload, &sp)
		if sp.System.Event != want[i] {
			t.Errorf("message %d: got %q, want %q", i, sp.System.Event, want[i])
		}
	}
	if !p.IsConnected() || p.buf.len() != 0 {
		t.Errorf("connected=%v buffered=%d after replay", p.IsConnected(), p.buf.len())
	}
}

func TestRealPublisherFailedReplayIsRequeued(t *testing.T) {
	p, sent := newTestPublisher(nil)
	p.PublishSystem(SystemEvent{Event: EventStartup})
	p.PublishSystem(SystemEvent{Event: EventShutdown})
	p.PublishHealth(HealthEvent{Health: logic.HealthSnapshot{SerialOK: true}})

	record := p.send
	calls := 0
	p.send = func(msg bufferedMsg) error {
		calls++
		if calls == 2 {
			return errors.New("publish timeout")
		}
		return record(msg)
	}

	p.handleConnect()

	if len(*sent) != 1 {
		t.Fatalf("only the first replay should have gone out, got %d", len(*sent))
	}
	if p.buf.len() != 2 {
		t.Fatalf("unsent messages should be buffered again, len=%d", p.buf.len())
	}

	p.send = record
	p.handleConnectionLost(errors.New("broker went away"))
	p.handleConnect()

	// RECONNECTED, then the two requeued messages in their original order.
	if len(*sent) != 4 {
		t.Fatalf("expected 4 messages in total, got %d", len(*sent))
	}
	var sp SystemPayload
	json.Unmarshal((*sent)[2].payload, &sp)
	if sp.System.Event != EventShutdown {
		t.Errorf("first requeued message: got %q, want SHUTDOWN", sp.System.Event)
	}
	if (*sent)[3].topic != "scan-relay/abc/health" {
		t.Errorf("second requeued message: %+v", (*sent)[3])
	}
}

func TestRealPublisherReplayStopsWhenConnectionLost(t *testing.T) {
	p, sent := newTestPublisher(nil)
	p.PublishSystem(SystemEvent{Event: EventStartup})

	record := p.send
	p.send = func(msg bufferedMsg) error {
		p.handleConnectionLost(errors.New("dropped"))
		p.PublishSystem(SystemEvent{Event: EventShutdown})
		return record(msg)
	}

	p.handleConnect()

	if p.IsConnected() {
		t.Error("a connection lost during replay must not be marked connected")
	}
	if len(*sent) != 1 || p.buf.len() != 1 {
		t.Errorf("sent=%d buffered=%d, want 1 and 1", len(*sent), p.buf.len())
	}
}
