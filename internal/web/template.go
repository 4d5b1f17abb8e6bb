package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/buttond/internal/status"
)

func formatUptime(d time.Duration) string {
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
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
	"bits": func(mask uint32, n int) string {
		if n <= 0 {
			return ""
		}
		return fmt.Sprintf("%0*b", n, mask)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>buttond</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.disabled { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>buttond{{if not .Enabled}} <span class="disabled">(disabled)</span>{{end}}</h1>

<h2>Buttons</h2>
<table>
<tr><th>#</th><th>Name</th><th>Pin</th><th>State</th><th>Held</th><th>Repeat</th><th>Timing (ticks)</th></tr>
{{range $i, $c := .Channels}}<tr>
<td>{{$i}}</td><td>{{$c.Name}}</td><td>{{$.Pin $i}}</td>
<td class="{{if $c.Pressed}}pressed{{else}}released{{end}}">{{if $c.Pressed}}PRESSED{{else}}released{{end}}</td>
<td>{{ms $c.PressedTime}}ms</td><td>{{$c.RepeatCount}}</td>
<td>{{$c.Timing.Detect}}/{{$c.Timing.Delay}}/{{$c.Timing.Interval}}</td>
</tr>
{{end}}</table>
<p>Bitmask: {{bits .Bitmask (len .Channels)}}</p>

<h2>Listeners</h2>
<table>
<tr><th>Registered</th><td>{{.Listeners}} / {{.Config.Capacity}}</td></tr>
<tr><th>Threshold level</th><td>{{.Threshold}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Pressed</th><td>{{.Counts.Pressed}}</td></tr>
<tr><th>Released</th><td>{{.Counts.Released}}</td></tr>
<tr><th>Repeat</th><td>{{.Counts.Repeat}}</td></tr>
</table>

{{if .Recent}}<h2>Recent Events</h2>
<table>
<tr><th>Time</th><th>Button</th><th>Event</th><th>Detail</th></tr>
{{range .Recent}}<tr><td>{{.Time.UTC.Format "15:04:05.000"}}</td><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{if .Repeat}}#{{.Repeat}}{{else if .Held}}{{ms .Held}}ms{{end}}</td></tr>
{{end}}</table>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>GPIO</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
