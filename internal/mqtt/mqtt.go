// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/scan-relay/internal/logic"
)

// TopicPrefix is the root of every topic this agent publishes to.
const TopicPrefix = "scan-relay"

// HealthTopic is the retained topic for per-tick health snapshots.
func HealthTopic(agentID string) string {
	return TopicPrefix + "/" + agentID + "/health"
}

// SystemTopic is the topic for lifecycle events.
func SystemTopic(agentID string) string {
	return TopicPrefix + "/" + agentID + "/system"
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventReconnected = "RECONNECTED"
)

// ReasonMQTTDisconnect is the shutdown reason carried by the last will.
const ReasonMQTTDisconnect = "MQTT_DISCONNECT"

// Publisher publishes agent events to MQTT.
type Publisher interface {
	// PublishHealth sends a monitor snapshot.
	// Returns error if publishing fails (should not crash the process).
	PublishHealth(event HealthEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// HealthEvent is one monitor snapshot.
type HealthEvent struct {
	Health     logic.HealthSnapshot
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatHealthPayload returns it directly
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// HealthPayload represents the MQTT message payload for health snapshots.
type HealthPayload struct {
	Health HealthPayloadInner `json:"health"`
}

// HealthPayloadInner contains the snapshot details.
type HealthPayloadInner struct {
	Timestamp string   `json:"timestamp"`
	Healthy   bool     `json:"healthy"`
	Serial    string   `json:"serial"`
	Scanner   string   `json:"scanner"`
	Server    string   `json:"server"`
	Errors    []string `json:"errors"`
}

// FormatHealthPayload creates the JSON payload for a health snapshot.
func FormatHealthPayload(event HealthEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	h := event.Health
	state := h.State()
	errs := h.Errors()
	if errs == nil {
		errs = []string{}
	}
	payload := HealthPayload{
		Health: HealthPayloadInner{
			Timestamp: h.Time.UTC().Format(time.RFC3339),
			Healthy:   h.AllOK(),
			Serial:    string(state.Channel),
			Scanner:   string(state.Activity),
			Server:    string(state.Peer),
			Errors:    errs,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
// A zero timestamp is omitted; the last will is composed before any time is known.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}
