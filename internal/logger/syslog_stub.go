//go:build windows || plan9

package logger

import (
	"errors"
	"io"
)

type syslogWriter interface {
	io.Writer
	io.Closer
}

// dialSyslog is not available on this platform.
func dialSyslog(addr string) (syslogWriter, error) {
	return nil, errors.New("syslog: not supported on this platform")
}
