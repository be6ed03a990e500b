// Package logger builds the agent's zap loggers: console, rotating files
// and an optional syslog sink.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels accepted in configuration.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Log file names inside the log directory.
const (
	MainFile   = "scan_relay.log"
	ErrorsFile = "errors.log"
	ScansFile  = "scan_events.log"
)

// Logger wraps zap's SugaredLogger. Scans is a separate logger that
// records only scan events.
type Logger struct {
	*zap.SugaredLogger
	Scans *zap.SugaredLogger

	closers []io.Closer
}

// Config selects the sinks.
type Config struct {
	Level string
	// Dir holds the rotating files. Empty disables file logging.
	Dir string
	// SyslogAddress is "local", or "udp://host:514" / "tcp://host:514".
	// Empty disables syslog.
	SyslogAddress string
	// Console receives info and above. Defaults to stdout.
	Console io.Writer
}

// ValidLevel reports whether s is a known level name.
func ValidLevel(s string) bool {
	switch s {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return true
	}
	return false
}

// toZapLevel converts a textual level, falling back to debug.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// rotating returns a size-rotated file writer.
func rotating(dir, name string, maxMB, backups int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    maxMB,
		MaxBackups: backups,
	}
}

// atLeast enables levels at or above min that the configured level also allows.
func atLeast(min, configured zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l >= min && l >= configured
	}
}

// New builds the loggers. The console gets info and above, the main file
// everything the level allows, the errors file only errors.
func New(cfg Config) (*Logger, error) {
	level := toZapLevel(cfg.Level)
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), zapcore.Lock(zapcore.AddSync(console)), atLeast(zapcore.InfoLevel, level)),
	}
	scanCores := []zapcore.Core{}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		mainLog := rotating(cfg.Dir, MainFile, 10, 5)
		errs := rotating(cfg.Dir, ErrorsFile, 5, 3)
		scans := rotating(cfg.Dir, ScansFile, 5, 3)
		l.closers = append(l.closers, mainLog, errs, scans)

		cores = append(cores,
			zapcore.NewCore(fileEncoder(), zapcore.AddSync(mainLog), atLeast(zapcore.DebugLevel, level)),
			zapcore.NewCore(fileEncoder(), zapcore.AddSync(errs), atLeast(zapcore.ErrorLevel, level)),
		)
		scanCores = append(scanCores,
			zapcore.NewCore(fileEncoder(), zapcore.AddSync(scans), zapcore.InfoLevel),
		)
	}

	var syslogErr error
	if cfg.SyslogAddress != "" {
		w, err := dialSyslog(cfg.SyslogAddress)
		if err != nil {
			syslogErr = err
		} else {
			l.closers = append(l.closers, w)
			cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(w), atLeast(zapcore.InfoLevel, level)))
		}
	}

	l.SugaredLogger = zap.New(zapcore.NewTee(cores...)).Sugar()
	l.Scans = zap.New(zapcore.NewTee(scanCores...)).Sugar()

	// Syslog is optional; carry on without it.
	if syslogErr != nil {
		l.Warnw("syslog disabled", "address", cfg.SyslogAddress, "err", syslogErr)
	}
	return l, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		Scans:         zap.NewNop().Sugar(),
	}
}

// Close flushes both loggers and closes the files.
func (l *Logger) Close() error {
	var errs []error
	// Sync on a console fd commonly fails with EINVAL; it is not actionable.
	_ = l.SugaredLogger.Sync()
	_ = l.Scans.Sync()
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
