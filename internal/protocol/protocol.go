// Package protocol implements the scanner health-check handshake: a fixed
// sequence of probe commands, tried in order until one gets any reply.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/scan-relay/internal/serialport"
)

// ErrNoResponse means every probe command went unanswered.
var ErrNoResponse = errors.New("no response to any health-check command")

// Control bytes used by the standard reader command set.
const (
	ENQ = 0x05
	ACK = 0x06
	NAK = 0x15
	STX = 0x02
	ETX = 0x03
)

// Command is one probe command.
type Command struct {
	Name  string
	Bytes []byte
}

// DefaultCommands is the standard probe sequence. Reader firmware often
// implements only some of these, hence the fallback order.
var DefaultCommands = []Command{
	{Name: "ENQ", Bytes: []byte{ENQ}},
	{Name: "STATUS", Bytes: []byte("\x02STATUS\x03")},
	{Name: "VER", Bytes: []byte("\x02VER\x03")},
	{Name: "BEEP", Bytes: []byte("\x02BEEP\x03")},
	{Name: "STATUS-CRLF", Bytes: []byte("STATUS\r\n")},
	{Name: "QUERY", Bytes: []byte("?\r\n")},
}

// Marker is a recognized reply fragment.
type Marker struct {
	Name  string
	Bytes []byte
}

// DefaultMarkers are the reply fragments recognized as a known response.
var DefaultMarkers = []Marker{
	{Name: "ack", Bytes: []byte{ACK}},
	{Name: "nak", Bytes: []byte{NAK}},
	{Name: "ok", Bytes: []byte("OK")},
	{Name: "status", Bytes: []byte("STATUS")},
	{Name: "version", Bytes: []byte("VER")},
	{Name: "beep", Bytes: []byte("BEEP")},
	{Name: "ready", Bytes: []byte("READY")},
}

// Classification is the kind of reply a probe got.
type Classification int

const (
	Absent Classification = iota
	UnrecognizedButPresent
	Recognized
)

func (c Classification) String() string {
	switch c {
	case Recognized:
		return "recognized"
	case UnrecognizedButPresent:
		return "unrecognized"
	default:
		return "absent"
	}
}

// Classify returns the classification of reply and, if recognized, the
// name of the first matching marker.
func Classify(reply []byte) (Classification, string) {
	if len(reply) == 0 {
		return Absent, ""
	}
	for _, m := range DefaultMarkers {
		if bytes.Contains(reply, m.Bytes) {
			return Recognized, m.Name
		}
	}
	return UnrecognizedButPresent, ""
}

// IsProbeResponse reports whether a received line looks like a reply to a
// probe rather than scan data. A line is a reply if it carries an ACK or NAK
// byte, or if its first whitespace-separated word, framing bytes removed, is
// a text marker alone or followed by a colon ("OK", "VER 1.2", "STATUS:READY").
// Scan data that merely starts with a marker, like "BOOK42" or "OK.7731",
// is not a reply.
func IsProbeResponse(line string) bool {
	if strings.ContainsAny(line, "\x06\x15") {
		return true
	}
	words := strings.Fields(line)
	if len(words) == 0 {
		return false
	}
	first := strings.Trim(words[0], "\x02\x03")
	for _, m := range DefaultMarkers {
		marker := string(m.Bytes)
		if first == marker || strings.HasPrefix(first, marker+":") {
			return true
		}
	}
	return false
}

// Logger receives protocol progress. report.Reporter satisfies it.
type Logger interface {
	Debug(msg string)
	Success(msg string)
	Error(kind, msg string)
}

type nopLogger struct{}

func (nopLogger) Debug(string)         {}
func (nopLogger) Success(string)       {}
func (nopLogger) Error(string, string) {}

// Config controls probe timing.
type Config struct {
	Commands []Command
	// Settle is the wait between writing a command and the first poll.
	Settle time.Duration
	// Polls is how many times to look for a reply per command.
	Polls int
	// PollInterval is the wait after each unanswered poll.
	PollInterval time.Duration
	// PollTimeout bounds each individual poll read.
	PollTimeout time.Duration
}

// DefaultConfig returns the standard timing: 100ms settle, three polls 100ms apart.
func DefaultConfig() Config {
	return Config{
		Commands:     DefaultCommands,
		Settle:       100 * time.Millisecond,
		Polls:        3,
		PollInterval: 100 * time.Millisecond,
		PollTimeout:  10 * time.Millisecond,
	}
}

// Result is the outcome of one health check.
type Result struct {
	OK bool
	// Command is the index of the command that got a reply, or -1.
	Command        int
	Classification Classification
	Marker         string
	Reply          []byte
	// Errors counts commands that failed at the channel level.
	Errors int
}

// Err returns ErrNoResponse for a failed check, nil otherwise.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return ErrNoResponse
}

// Prober runs health checks.
type Prober struct {
	cfg   Config
	log   Logger
	sleep func(time.Duration)
}

// NewProber creates a Prober. A nil logger discards progress messages.
func NewProber(cfg Config, log Logger) *Prober {
	if len(cfg.Commands) == 0 {
		cfg.Commands = DefaultCommands
	}
	if cfg.Polls <= 0 {
		cfg.Polls = 3
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Prober{cfg: cfg, log: log, sleep: time.Sleep}
}

// Run tries each command in order and stops at the first reply. Any
// non-empty reply proves the link is alive, recognized or not. A channel
// error on one command moves on to the next.
func (p *Prober) Run(port serialport.Port) Result {
	n := len(p.cfg.Commands)
	failed := 0
	for i, cmd := range p.cfg.Commands {
		p.log.Debug(fmt.Sprintf("health-check command %d/%d: %s", i+1, n, cmd.Name))

		reply, err := p.exchange(port, cmd)
		if err != nil {
			p.log.Error("health-check", fmt.Sprintf("command %d (%s) failed: %v", i+1, cmd.Name, err))
			failed++
			continue
		}
		if len(reply) == 0 {
			continue
		}

		class, marker := Classify(reply)
		if class == Recognized {
			p.log.Success(fmt.Sprintf("health check passed on command %d (%s): %s reply", i+1, cmd.Name, marker))
		} else {
			p.log.Debug(fmt.Sprintf("unrecognized reply to command %d (%s), link alive: %q", i+1, cmd.Name, reply))
		}
		return Result{OK: true, Command: i, Classification: class, Marker: marker, Reply: reply, Errors: failed}
	}
	return Result{Command: -1, Errors: failed}
}

// RunOnLink runs a health check with exclusive use of the link's live handle.
func (p *Prober) RunOnLink(link *serialport.Link) Result {
	var res Result
	err := link.Use(func(port serialport.Port) error {
		res = p.Run(port)
		return nil
	})
	if err != nil {
		p.log.Error("health-check", err.Error())
		return Result{Command: -1}
	}
	return res
}

// exchange sends one command and polls for a reply.
func (p *Prober) exchange(port serialport.Port, cmd Command) ([]byte, error) {
	if err := port.ClearBuffers(); err != nil {
		return nil, err
	}
	if err := port.Write(cmd.Bytes); err != nil {
		return nil, err
	}
	p.sleep(p.cfg.Settle)

	for attempt := 1; attempt <= p.cfg.Polls; attempt++ {
		reply, err := port.ReadAvailable(p.cfg.PollTimeout)
		if err != nil {
			return nil, err
		}
		if len(reply) > 0 {
			return reply, nil
		}
		p.log.Debug(fmt.Sprintf("waiting for reply to %s (%d/%d)", cmd.Name, attempt, p.cfg.Polls))
		p.sleep(p.cfg.PollInterval)
	}
	return nil, nil
}
