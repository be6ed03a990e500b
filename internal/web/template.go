package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/scan-relay/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"stateClass": func(s string) string {
		switch s {
		case "OPEN", "ACTIVE", "REACHABLE":
			return "ok"
		case "CLOSED", "INACTIVE", "UNREACHABLE":
			return "bad"
		default:
			return "unknown"
		}
	},
	"timeOrNever": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>Scan Relay</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.bad { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Scan Relay{{if .Config.Hostname}} on {{.Config.Hostname}}{{end}}</h1>

<h2>Health</h2>
<table>
<tr><th>Serial port</th><td class="{{stateClass (printf "%s" .State.Channel)}}">{{stateOrUnknown (printf "%s" .State.Channel)}}</td></tr>
<tr><th>Scanner</th><td class="{{stateClass (printf "%s" .State.Activity)}}">{{stateOrUnknown (printf "%s" .State.Activity)}}</td></tr>
<tr><th>Server</th><td class="{{stateClass (printf "%s" .State.Peer)}}">{{stateOrUnknown (printf "%s" .State.Peer)}}</td></tr>
<tr><th>Last check</th><td>{{if .HasHealth}}{{timeOrNever .Health.Time}}{{else}}pending{{end}}</td></tr>
</table>

<h2>Scans</h2>
<table>
<tr><th>Last scan</th><td>{{timeOrNever .LastScan}}</td></tr>
<tr><th>Last payload</th><td>{{.LastPayload}}</td></tr>
<tr><th>Received</th><td>{{.Counts.Received}}</td></tr>
<tr><th>Forwarded</th><td>{{.Counts.Forwarded}}</td></tr>
<tr><th>Duplicates</th><td>{{.Counts.Duplicates}}</td></tr>
<tr><th>Forward failures</th><td>{{.Counts.ForwardFailures}}</td></tr>
<tr><th>Health checks</th><td>{{.Counts.HealthChecks}} ({{.Counts.HealthCheckFailures}} failed)</td></tr>
<tr><th>Reconnects</th><td>{{.Counts.Reconnects}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Server URL</th><td>{{.Config.ServerURL}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Agent ID</th><td>{{.Config.AgentID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Serial</th><td>{{.Config.SerialPort}} @ {{.Config.Baud}}</td></tr>
<tr><th>Activity policy</th><td>{{.Config.Policy}}</td></tr>
<tr><th>Check interval</th><td>{{.Config.CheckIntervalMs}}ms</td></tr>
<tr><th>Health check interval</th><td>{{.Config.HealthCheckIntervalMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/healthz">healthz</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
