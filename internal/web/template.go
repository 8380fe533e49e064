package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-sensor/internal/status"
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
	"orDefault": func(s, def string) string {
		if s == "" {
			return def
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Door Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: #c60; font-weight: bold; }
.closed { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Door Sensor</h1>

<h2>State</h2>
<table>
{{$door := orDefault (printf "%s" .Door) "UNKNOWN"}}<tr><th>Door</th><td class="{{if eq $door "OPEN"}}open{{else if eq $door "CLOSED"}}closed{{else}}unknown{{end}}">{{$door}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>WiFi</th><td>{{orDefault .WifiStep "idle"}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.SSID}} ({{.Network.Interface}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>
{{if not .Network.Since.IsZero}}<tr><th>Connected since</th><td>{{.Network.Since.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}{{end}}
<tr><th>Stream</th><td class="{{if .StreamConnected}}connected{{else}}disconnected{{end}}">{{if .StreamConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Endpoint</th><td>{{.Config.Endpoint}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>door_opened</th><td>{{.Counts.Opened}}</td></tr>
<tr><th>door_closed</th><td>{{.Counts.Closed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Pin</th><td>{{.Config.Pin}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
