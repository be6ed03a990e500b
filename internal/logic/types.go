// Package logic contains pure business logic for scanner health tracking.
// This package has NO external dependencies (no serial, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Activity is the derived "device active" verdict.
type Activity string

const (
	ActivityActive   Activity = "ACTIVE"
	ActivityInactive Activity = "INACTIVE"
)

// ChannelState is the openness of the device channel.
type ChannelState string

const (
	ChannelOpen   ChannelState = "OPEN"
	ChannelClosed ChannelState = "CLOSED"
)

// PeerState is the reachability of the remote server.
type PeerState string

const (
	PeerReachable   PeerState = "REACHABLE"
	PeerUnreachable PeerState = "UNREACHABLE"
)

// Policy selects how the activity verdict is derived.
type Policy string

const (
	// PolicyRecency trusts recently received data, and falls back to
	// health-check probing when the reader has been silent.
	PolicyRecency Policy = "recency"

	// PolicyPresence treats an open channel as sufficient.
	PolicyPresence Policy = "presence"
)

// ParsePolicy converts a config string to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch Policy(s) {
	case PolicyRecency, PolicyPresence:
		return Policy(s), true
	}
	return "", false
}

// Warning categories. Each is throttled independently.
const (
	CategorySerial         = "serial"
	CategoryDeviceInactive = "device-inactive"
	CategoryServer         = "server"
)

// AgentState is the tagged state record recomputed on every monitor tick.
type AgentState struct {
	Channel  ChannelState
	Activity Activity
	Peer     PeerState
}

// HealthSnapshot is the consolidated report produced by one monitor tick.
type HealthSnapshot struct {
	SerialOK     bool
	ServerOK     bool
	DeviceActive bool
	Time         time.Time
}

// AllOK reports whether every check passed.
func (h HealthSnapshot) AllOK() bool {
	return h.SerialOK && h.ServerOK && h.DeviceActive
}

// Errors returns the error codes for failed checks, in a fixed order.
func (h HealthSnapshot) Errors() []string {
	var errs []string
	if !h.SerialOK {
		errs = append(errs, "SERIAL_PORT_ERROR")
	}
	if !h.ServerOK {
		errs = append(errs, "SERVER_CONNECTION_ERROR")
	}
	if !h.DeviceActive {
		errs = append(errs, "SCANNER_INACTIVE")
	}
	return errs
}

// State returns the tagged state record for the snapshot.
func (h HealthSnapshot) State() AgentState {
	s := AgentState{
		Channel:  ChannelClosed,
		Activity: ActivityInactive,
		Peer:     PeerUnreachable,
	}
	if h.SerialOK {
		s.Channel = ChannelOpen
	}
	if h.DeviceActive {
		s.Activity = ActivityActive
	}
	if h.ServerOK {
		s.Peer = PeerReachable
	}
	return s
}
