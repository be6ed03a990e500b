// Package config loads agent settings from flags, environment and an
// optional YAML file. Precedence: flags > SCAN_RELAY_* env > file > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/scan-relay/internal/logger"
	"github.com/sweeney/scan-relay/internal/logic"
)

// EnvPrefix prefixes every environment override, e.g. SCAN_RELAY_SERIAL_PORT.
const EnvPrefix = "SCAN_RELAY"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full agent configuration. It is read once at startup.
type Config struct {
	Serial  Serial
	Server  Server
	Monitor Monitor
	Log     Log
	MQTT    MQTT

	HTTPAddr string
	LEDPin   int

	// PrintState and File come from flags only.
	PrintState bool
	File       string
}

// Serial identifies the reader's line.
type Serial struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Server locates the remote endpoint.
type Server struct {
	Host          string
	APIPath       string
	HealthLogPath string
}

// Monitor holds the timing of health supervision.
type Monitor struct {
	CheckInterval       time.Duration
	HealthCheckInterval time.Duration
	WarningInterval     time.Duration
	ActivityTimeout     time.Duration
	ActivityPolicy      logic.Policy
	ReconnectDelay      time.Duration
}

// Log selects log sinks.
type Log struct {
	Level         string
	Dir           string
	SyslogAddress string
}

// MQTT is optional; an empty broker disables it.
type MQTT struct {
	Broker string
}

// option is one setting: its viper key, flag name, default and usage.
type option struct {
	key   string
	flag  string
	def   any
	usage string
}

var options = []option{
	{"serial.port", "serial-port", "/dev/ttyUSB0", "serial device path"},
	{"serial.baud", "baud", 9600, "serial baud rate"},
	{"serial.read_timeout", "read-timeout", time.Second, "serial read timeout"},
	{"server.host", "server", "http://127.0.0.1:5173", "server base URL"},
	{"server.api_path", "api-path", "/api/post", "path scans are POSTed to"},
	{"server.health_log_path", "health-log-path", "/api/health-log", "path health errors are POSTed to"},
	{"monitor.check_interval", "check-interval", 5 * time.Minute, "status monitor period"},
	{"monitor.health_check_interval", "health-check-interval", 2 * time.Minute, "minimum spacing between scanner probes"},
	{"monitor.warning_interval", "warning-interval", 5 * time.Minute, "minimum spacing between repeated warnings"},
	{"monitor.activity_timeout", "activity-timeout", 5 * time.Minute, "how long received data proves the scanner active"},
	{"monitor.activity_policy", "activity-policy", string(logic.PolicyRecency), `activity policy: "recency" or "presence"`},
	{"monitor.reconnect_delay", "reconnect-delay", 5 * time.Second, "wait between serial reconnect attempts"},
	{"log.level", "log-level", logger.DebugLevel, "log level: debug, info, warn, error"},
	{"log.dir", "log-dir", "logs", "directory for rotating log files (empty disables)"},
	{"log.syslog_address", "syslog", "", `syslog sink: "local" or "udp://host:514" (empty disables)`},
	{"mqtt.broker", "broker", "", "MQTT broker address (empty disables)"},
	{"http_addr", "http", ":8080", "HTTP status address (empty disables)"},
	{"led_pin", "led-pin", -1, "BCM pin for the status LED (-1 disables)"},
}

// NewFlagSet returns the agent's flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "YAML config file")
	fs.Bool("print-state", false, "Print current state and exit")
	for _, o := range options {
		switch d := o.def.(type) {
		case string:
			fs.String(o.flag, d, o.usage)
		case int:
			fs.Int(o.flag, d, o.usage)
		case time.Duration:
			fs.Duration(o.flag, d, o.usage)
		}
	}
	return fs
}

// Load parses args and resolves every setting.
func Load(args []string) (Config, error) {
	fs := NewFlagSet("scan-relay")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return FromFlags(fs)
}

// FromFlags resolves settings from an already parsed flag set.
func FromFlags(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for _, o := range options {
		v.SetDefault(o.key, o.def)
		if err := v.BindPFlag(o.key, fs.Lookup(o.flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", o.flag, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file, _ := fs.GetString("config")
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	printState, _ := fs.GetBool("print-state")

	cfg := Config{
		Serial: Serial{
			Port:        v.GetString("serial.port"),
			Baud:        v.GetInt("serial.baud"),
			ReadTimeout: v.GetDuration("serial.read_timeout"),
		},
		Server: Server{
			Host:          v.GetString("server.host"),
			APIPath:       v.GetString("server.api_path"),
			HealthLogPath: v.GetString("server.health_log_path"),
		},
		Monitor: Monitor{
			CheckInterval:       v.GetDuration("monitor.check_interval"),
			HealthCheckInterval: v.GetDuration("monitor.health_check_interval"),
			WarningInterval:     v.GetDuration("monitor.warning_interval"),
			ActivityTimeout:     v.GetDuration("monitor.activity_timeout"),
			ActivityPolicy:      logic.Policy(v.GetString("monitor.activity_policy")),
			ReconnectDelay:      v.GetDuration("monitor.reconnect_delay"),
		},
		Log: Log{
			Level:         v.GetString("log.level"),
			Dir:           v.GetString("log.dir"),
			SyslogAddress: v.GetString("log.syslog_address"),
		},
		MQTT:       MQTT{Broker: v.GetString("mqtt.broker")},
		HTTPAddr:   v.GetString("http_addr"),
		LEDPin:     v.GetInt("led_pin"),
		PrintState: printState,
		File:       file,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Serial.Port == "" {
		bad("serial.port is empty")
	}
	if c.Serial.Baud <= 0 {
		bad("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout <= 0 {
		bad("serial.read_timeout must be positive, got %v", c.Serial.ReadTimeout)
	}

	if u, err := url.Parse(c.Server.Host); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		bad("server.host must be an http(s) URL, got %q", c.Server.Host)
	}
	if !strings.HasPrefix(c.Server.APIPath, "/") {
		bad("server.api_path must start with /, got %q", c.Server.APIPath)
	}
	if !strings.HasPrefix(c.Server.HealthLogPath, "/") {
		bad("server.health_log_path must start with /, got %q", c.Server.HealthLogPath)
	}

	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"monitor.check_interval", c.Monitor.CheckInterval},
		{"monitor.health_check_interval", c.Monitor.HealthCheckInterval},
		{"monitor.warning_interval", c.Monitor.WarningInterval},
		{"monitor.activity_timeout", c.Monitor.ActivityTimeout},
		{"monitor.reconnect_delay", c.Monitor.ReconnectDelay},
	} {
		if d.val <= 0 {
			bad("%s must be positive, got %v", d.name, d.val)
		}
	}
	if _, ok := logic.ParsePolicy(string(c.Monitor.ActivityPolicy)); !ok {
		bad("monitor.activity_policy must be recency or presence, got %q", c.Monitor.ActivityPolicy)
	}

	if !logger.ValidLevel(c.Log.Level) {
		bad("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.LEDPin < -1 {
		bad("led_pin must be -1 or a pin number, got %d", c.LEDPin)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
