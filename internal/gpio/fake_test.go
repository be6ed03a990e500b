package gpio

import (
	"errors"
	"testing"
)

func TestFakeLEDSet(t *testing.T) {
	f := NewFakeLED()

	if _, ok := f.Last(); ok {
		t.Error("new LED should have no value")
	}

	f.Set(true)
	f.Set(false)
	f.Set(true)

	if len(f.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(f.Values))
	}
	on, ok := f.Last()
	if !ok || !on {
		t.Errorf("Last: got (%v, %v), want (true, true)", on, ok)
	}
}

func TestFakeLEDSetError(t *testing.T) {
	f := NewFakeLED()
	f.SetError = errors.New("line busy")

	if err := f.Set(true); err == nil {
		t.Error("expected error")
	}
	if len(f.Values) != 0 {
		t.Error("failed Set should not be recorded")
	}
}

func TestFakeLEDClose(t *testing.T) {
	f := NewFakeLED()
	if f.Closed {
		t.Error("new LED should not be closed")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("expected Closed=true")
	}
}

func TestFakeLEDImplementsLED(t *testing.T) {
	var _ LED = NewFakeLED()
	var _ LED = (*RealLED)(nil)
}
