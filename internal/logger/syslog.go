//go:build !windows && !plan9

package logger

import (
	"fmt"
	"log/syslog"
	"strings"
)

const syslogTag = "scan-relay"

// dialSyslog connects to the local daemon ("local") or a remote one
// ("udp://host:514", "tcp://host:514").
func dialSyslog(addr string) (*syslog.Writer, error) {
	if addr == "local" {
		return syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, syslogTag)
	}
	network, raddr, ok := strings.Cut(addr, "://")
	if !ok || raddr == "" {
		return nil, fmt.Errorf("invalid syslog address %q", addr)
	}
	return syslog.Dial(network, raddr, syslog.LOG_INFO|syslog.LOG_DAEMON, syslogTag)
}
