package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	AgentID       string     `json:"agent_id"`
	Hostname      string     `json:"hostname"`
	Healthy       bool       `json:"healthy"`
	Channel       string     `json:"channel"`
	Activity      string     `json:"activity"`
	Peer          string     `json:"peer"`
	Errors        []string   `json:"errors"`
	LastCheck     string     `json:"last_check,omitempty"`
	LastScan      string     `json:"last_scan,omitempty"`
	LastPayload   string     `json:"last_payload,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the counters.
type CountsJSON struct {
	Received            int `json:"received"`
	Forwarded           int `json:"forwarded"`
	Duplicates          int `json:"duplicates"`
	ForwardFailures     int `json:"forward_failures"`
	HealthChecks        int `json:"health_checks"`
	HealthCheckFailures int `json:"health_check_failures"`
	Reconnects          int `json:"reconnects"`
}

// ConfigJSON is the JSON representation of agent config.
type ConfigJSON struct {
	SerialPort            string `json:"serial_port"`
	Baud                  int    `json:"baud"`
	ServerURL             string `json:"server_url"`
	Policy                string `json:"activity_policy"`
	CheckIntervalMs       int64  `json:"check_interval_ms"`
	HealthCheckIntervalMs int64  `json:"health_check_interval_ms"`
	ActivityTimeoutMs     int64  `json:"activity_timeout_ms"`
	WarningIntervalMs     int64  `json:"warning_interval_ms"`
	Broker                string `json:"broker"`
	HTTPAddr              string `json:"http_addr"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	errs := snap.Health.Errors()
	if !snap.HasHealth || errs == nil {
		errs = []string{}
	}
	inner := StatusInner{
		AgentID:       snap.Config.AgentID,
		Hostname:      snap.Config.Hostname,
		Healthy:       snap.Healthy(),
		Channel:       orUnknown(string(snap.State.Channel)),
		Activity:      orUnknown(string(snap.State.Activity)),
		Peer:          orUnknown(string(snap.State.Peer)),
		Errors:        errs,
		LastScan:      formatTime(snap.LastScan),
		LastPayload:   snap.LastPayload,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Received:            snap.Counts.Received,
			Forwarded:           snap.Counts.Forwarded,
			Duplicates:          snap.Counts.Duplicates,
			ForwardFailures:     snap.Counts.ForwardFailures,
			HealthChecks:        snap.Counts.HealthChecks,
			HealthCheckFailures: snap.Counts.HealthCheckFailures,
			Reconnects:          snap.Counts.Reconnects,
		},
		Config: ConfigJSON{
			SerialPort:            snap.Config.SerialPort,
			Baud:                  snap.Config.Baud,
			ServerURL:             snap.Config.ServerURL,
			Policy:                snap.Config.Policy,
			CheckIntervalMs:       snap.Config.CheckIntervalMs,
			HealthCheckIntervalMs: snap.Config.HealthCheckIntervalMs,
			ActivityTimeoutMs:     snap.Config.ActivityTimeoutMs,
			WarningIntervalMs:     snap.Config.WarningIntervalMs,
			Broker:                snap.Config.Broker,
			HTTPAddr:              snap.Config.HTTPAddr,
		},
	}
	if snap.HasHealth {
		inner.LastCheck = formatTime(snap.Health.Time)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// Line returns a one-line human summary, as printed by --print-state and
// logged after every monitor tick.
func Line(snap Snapshot) string {
	inner := buildInner(snap)
	return "serial=" + inner.Channel + " scanner=" + inner.Activity + " server=" + inner.Peer
}
