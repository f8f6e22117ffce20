package web

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/sweeney/powermeter-sensor/internal/status"
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
	"watts": func(w float64) string {
		if math.IsInf(w, 0) || math.IsNaN(w) {
			return "n/a"
		}
		return fmt.Sprintf("%.3f W", w)
	},
	"ts": func(t time.Time) string {
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Power Meter</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.power { font-weight: bold; }
.waiting { color: orange; }
.ok, .connected { color: green; }
.failed, .disconnected { color: red; }
</style>
</head>
<body>
<h1>Power Meter {{.Config.DeviceID}}</h1>

<h2>Power</h2>
<table>
{{if .HasSample}}<tr><th>Last estimate</th><td id="watts" class="power">{{watts .LastSample.Watts}}</td></tr>
<tr><th>Interval</th><td>{{.LastSample.IntervalMs}}ms</td></tr>
<tr><th>Last pulse</th><td>{{ts .LastSample.Time}}</td></tr>
{{else}}<tr><th>Last estimate</th><td class="waiting">waiting for first pulse</td></tr>
{{end}}{{with .LastReport}}<tr><th>Last report</th><td class="{{if .Error}}failed{{else}}ok{{end}}">{{watts .Watts}} at {{ts .Time}}{{if .Error}} ({{.Error}}){{end}}</td></tr>
{{end}}</table>

<h2>Counts</h2>
<table>
<tr><th>Pulses</th><td>{{.Counts.Pulses}}</td></tr>
<tr><th>Reports</th><td>{{.Counts.Reports}}</td></tr>
<tr><th>Report failures</th><td>{{.Counts.ReportFailures}}</td></tr>
<tr><th>Log failures</th><td>{{.Counts.LogFailures}}</td></tr>
<tr><th>Dropped edges</th><td>{{.Counts.DroppedEdges}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Collector</th><td>{{.Config.Endpoint}}</td></tr>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO pin</th><td>{{.Config.Pin}}</td></tr>
<tr><th>Timestamp log</th><td>{{.Config.LogFile}} (flush {{.Config.FlushMs}}ms)</td></tr>
<tr><th>Report period</th><td>{{.Config.ReportMs}}ms</td></tr>
<tr><th>Send timeout</th><td>{{.Config.SendTimeoutMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
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
