package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/status"
)

var modes = []control.Mode{
	control.ModeOff,
	control.ModeFridgeConstant,
	control.ModeBeerConstant,
	control.ModeBeerProfile,
	control.ModeTest,
}

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
	"stateOrUnknown": func(s control.State) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"modes": func() []control.Mode { return modes },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Chamber Control</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.COOLING { color: blue; font-weight: bold; }
.HEATING { color: red; font-weight: bold; }
.DOOR_OPEN, .UNKNOWN { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
form { display: inline; }
input[type=number] { width: 6em; }
</style>
</head>
<body>
<h1>Chamber Control{{if .Config.Simulate}} (simulated){{end}}</h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateOrUnknown .State}}">{{stateOrUnknown .State}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>Cooler</th><td class="{{onOff .Outputs.Cooler}}">{{onOff .Outputs.Cooler}}</td></tr>
<tr><th>Heater</th><td class="{{onOff .Outputs.Heater}}">{{onOff .Outputs.Heater}}</td></tr>
<tr><th>Light</th><td class="{{onOff .Outputs.Light}}">{{onOff .Outputs.Light}}</td></tr>
</table>

<h2>Temperatures</h2>
<table>
<tr><th>Beer</th><td id="beer-temp">{{.BeerTemp}}</td></tr>
<tr><th>Beer setting</th><td id="beer-setting">{{.BeerSetting}}</td></tr>
<tr><th>Fridge</th><td id="fridge-temp">{{.FridgeTemp}}</td></tr>
<tr><th>Fridge setting</th><td id="fridge-setting">{{.FridgeSetting}}</td></tr>
<tr><th>Estimated peak</th><td>{{.Estimates.EstimatedPeak}}</td></tr>
<tr><th>Peak detect</th><td>{{if .PosPeakDetect}}positive {{.Estimates.PosPeakEstimate}}{{else if .NegPeakDetect}}negative {{.Estimates.NegPeakEstimate}}{{else}}none{{end}}</td></tr>
</table>

<h2>Setpoints</h2>
<table>
<tr><th>Mode</th><td><form method="post" action="/api/mode"><select name="value">{{$cur := .Mode}}{{range modes}}<option value="{{.}}"{{if eq . $cur}} selected{{end}}>{{.}}</option>{{end}}</select> <button>Set</button></form></td></tr>
<tr><th>Beer</th><td><form method="post" action="/api/beer"><input type="number" step="0.1" name="value"> <button>Set</button></form></td></tr>
<tr><th>Fridge</th><td><form method="post" action="/api/fridge"><input type="number" step="0.1" name="value"> <button>Set</button></form></td></tr>
</table>

<h2>Door</h2>
<table>
<tr><th>Opened</th><td>{{.Door.Opened}}</td></tr>
<tr><th>Closed</th><td>{{.Door.Closed}}</td></tr>
</table>

{{if .Annotations}}<h2>Recent events</h2>
<table>
{{range .Annotations}}<tr><th>{{.Time.UTC.Format "2006-01-02T15:04:05Z"}}</th><td>{{.Message}}</td></tr>
{{end}}</table>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Indicator</th><td>{{.Config.Indicator}}</td></tr>
<tr><th>Storage</th><td>{{.Config.Storage}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>`

func renderHTML(w io.Writer, snap status.Snapshot) {
	indexTmpl.Execute(w, snap)
}
