package serialport

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLinkNotOpen(t *testing.T) {
	l := NewLink()
	if l.IsOpen() {
		t.Error("new link should not be open")
	}
	if _, err := l.ReadLine(time.Millisecond); !errors.Is(err, ErrNotOpen) {
		t.Errorf("ReadLine: expected ErrNotOpen, got %v", err)
	}
	if err := l.Use(func(Port) error { return nil }); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Use: expected ErrNotOpen, got %v", err)
	}
}

func TestLinkAttachDetach(t *testing.T) {
	l := NewLink()
	p := NewFakePort(FakeRead{Line: []byte("X1")})

	l.Attach(p)
	if !l.IsOpen() {
		t.Fatal("link should be open after Attach")
	}
	line, err := l.ReadLine(time.Second)
	if err != nil || string(line) != "X1" {
		t.Errorf("ReadLine: got (%q, %v)", line, err)
	}

	got := l.Detach()
	if got != p {
		t.Error("Detach should return the attached port")
	}
	if l.IsOpen() {
		t.Error("link should be closed after Detach")
	}
	if p.IsClosed() {
		t.Error("Detach must not close the port; the owner does")
	}
}

func TestLinkUseIsExclusive(t *testing.T) {
	l := NewLink()
	l.Attach(NewFakePort())

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Use(func(Port) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("concurrent borrowers: got %d, want 1", maxInside)
	}
}

func TestFakeDeviceHandsOutPorts(t *testing.T) {
	p1, p2 := NewFakePort(), NewFakePort()
	d := NewFakeDevice(p1, p2)

	a, _ := d.Open()
	b, _ := d.Open()
	c, _ := d.Open()
	if a != p1 || b != p2 || c != p2 {
		t.Error("ports should be handed out in order, last reused")
	}

	d.SetAvailable(false)
	if d.Probe() {
		t.Error("unavailable device should fail Probe")
	}
	if _, err := d.Open(); !errors.Is(err, ErrPortUnavailable) {
		t.Errorf("expected ErrPortUnavailable, got %v", err)
	}
	probes, opens := d.Counts()
	if probes != 1 || opens != 4 {
		t.Errorf("counts: probes=%d opens=%d", probes, opens)
	}
}

func TestFakePortReplies(t *testing.T) {
	p := NewFakePort()
	p.Replies = map[string][]byte{"\x05": {0x06}}

	p.Write([]byte("\x05"))
	got, _ := p.ReadAvailable(time.Millisecond)
	if string(got) != "\x06" {
		t.Errorf("reply: got %q", got)
	}
	got, _ = p.ReadAvailable(time.Millisecond)
	if len(got) != 0 {
		t.Errorf("reply should be consumed, got %q", got)
	}
}
