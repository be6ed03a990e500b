package logic

import (
	"reflect"
	"testing"
	"time"
)

func TestHealthSnapshotAllOK(t *testing.T) {
	h := HealthSnapshot{SerialOK: true, ServerOK: true, DeviceActive: true, Time: time.Now()}
	if !h.AllOK() {
		t.Error("expected AllOK")
	}
	if errs := h.Errors(); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
	want := AgentState{Channel: ChannelOpen, Activity: ActivityActive, Peer: PeerReachable}
	if h.State() != want {
		t.Errorf("State: got %+v, want %+v", h.State(), want)
	}
}

func TestHealthSnapshotErrorsOrder(t *testing.T) {
	h := HealthSnapshot{}
	if h.AllOK() {
		t.Error("expected not AllOK")
	}
	want := []string{"SERIAL_PORT_ERROR", "SERVER_CONNECTION_ERROR", "SCANNER_INACTIVE"}
	if !reflect.DeepEqual(h.Errors(), want) {
		t.Errorf("Errors: got %v, want %v", h.Errors(), want)
	}
	st := AgentState{Channel: ChannelClosed, Activity: ActivityInactive, Peer: PeerUnreachable}
	if h.State() != st {
		t.Errorf("State: got %+v, want %+v", h.State(), st)
	}
}

func TestHealthSnapshotPartial(t *testing.T) {
	h := HealthSnapshot{SerialOK: true, DeviceActive: true}
	if !reflect.DeepEqual(h.Errors(), []string{"SERVER_CONNECTION_ERROR"}) {
		t.Errorf("Errors: got %v", h.Errors())
	}
}
