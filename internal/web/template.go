package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/status"
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
	"ms": func(d time.Duration) string {
		return fmt.Sprintf("%gms", float64(d)/float64(time.Millisecond))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Proximity Trend</title>
<style>
body { font-family: monospace; max-width: 1000px; margin: 2em auto; padding: 0 1em; background: #121212; color: #e0e0e0; }
h1 { font-size: 1.4em; }
h2 { font-size: 1.1em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #333; }
th { width: 40%; }
button { font-family: monospace; margin: 2px; padding: 4px 10px; background: #2a2a2a; color: #e0e0e0; border: 1px solid #555; }
button.active { border-color: deepskyblue; color: deepskyblue; }
.on { color: lime; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: lime; }
.disconnected { color: red; }
.notice { color: orange; }
#label { color: deepskyblue; min-height: 1.2em; }
#chart { width: 100%; background: #1e1e1e; min-height: 100px; }
</style>
</head>
<body>
<h1>Proximity Trend</h1>

<h2>Beds</h2>
<table>
{{range .Plant}}{{$addr := .Address}}<tr><th>{{.Label}} ({{.Address}})</th><td>{{range .Beds}}<button class="bed{{if and (eq $addr $.Controller) (eq . $.Tags.Bed)}} active{{end}}" data-controller="{{$addr}}" data-bed="{{.}}">{{.}}</button>{{end}}</td></tr>
{{end}}</table>

<div>
<button id="pause">{{if eq (printf "%s" .State) "PAUSED"}}Resume{{else}}Pause{{end}}</button>
<button class="shift" data-delta="-0.5">&laquo; 0.5s</button>
<button class="shift" data-delta="-0.1">&lsaquo; 0.1s</button>
<button class="shift" data-delta="0.1">0.1s &rsaquo;</button>
<button class="shift" data-delta="0.5">0.5s &raquo;</button>
<a href="/readme" target="_blank">Reference</a>
</div>
<p id="label">{{.Label}}</p>
<img id="chart" src="/chart.png" alt="trend">

<h2>State</h2>
<table>
<tr><th>Bed</th><td id="bed">{{if .Tags.Bed}}{{.Tags.Bed}} on {{.ControllerLabel}} ({{.Controller}}){{else}}none selected{{end}}</td></tr>
<tr><th>Run state</th><td id="state">{{if .Tags.Bed}}{{.State}}{{else}}IDLE{{end}}</td></tr>
<tr><th>Prox1</th><td id="prox1" class="{{if eq (stateOrUnknown (printf "%s" .Prox1)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .Prox1)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Prox1)}}</td></tr>
<tr><th>Prox2</th><td id="prox2" class="{{if eq (stateOrUnknown (printf "%s" .Prox2)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .Prox2)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Prox2)}}</td></tr>
<tr><th>Source</th><td id="source" class="{{if .SourceConnected}}connected{{else}}disconnected{{end}}">{{if .SourceConnected}}connected{{else}}disconnected{{end}}{{if .SourceKind}} ({{.SourceKind}}){{end}}</td></tr>
<tr><th>Samples</th><td id="ticks">{{.Ticks}}</td></tr>
</table>

<h2>Edge Counts</h2>
<table>
<tr><th>Prox1 rising</th><td id="p1r">{{.Counts.Prox1Rising}}</td></tr>
<tr><th>Prox1 falling</th><td id="p1f">{{.Counts.Prox1Falling}}</td></tr>
<tr><th>Prox2 rising</th><td id="p2r">{{.Counts.Prox2Rising}}</td></tr>
<tr><th>Prox2 falling</th><td id="p2f">{{.Counts.Prox2Falling}}</td></tr>
</table>

<h2>Notices</h2>
<ul id="notices">
{{range .Notices}}<li class="notice">{{.Time.UTC.Format "15:04:05"}} {{.Message}}</li>
{{else}}<li>none</li>
{{end}}</ul>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Interval</th><td>{{ms .Config.Interval}}</td></tr>
<tr><th>Window</th><td>{{ms .Config.Window}}</td></tr>
<tr><th>Redraw</th><td>{{ms .Config.Redraw}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">Metrics</a></p>

<script>
(function() {
  function post(url) {
    return fetch(url, { method: "POST" }).then(function(r) { return r.json(); });
  }

  document.querySelectorAll("button.bed").forEach(function(b) {
    b.addEventListener("click", function() {
      post("/api/select?controller=" + encodeURIComponent(b.dataset.controller) + "&bed=" + encodeURIComponent(b.dataset.bed))
        .then(function() { location.reload(); });
    });
  });
  document.getElementById("pause").addEventListener("click", function() { post("/api/pause"); });
  document.querySelectorAll("button.shift").forEach(function(b) {
    b.addEventListener("click", function() { post("/api/shift?delta=" + b.dataset.delta); });
  });

  var chart = document.getElementById("chart");
  var loading = false;
  function refreshChart() {
    if (loading) { return; }
    loading = true;
    var img = new Image();
    img.onload = function() { chart.src = img.src; loading = false; };
    img.onerror = function() { loading = false; };
    img.src = "/chart.png?t=" + Date.now();
  }

  function setLevel(id, state) {
    var el = document.getElementById(id);
    el.textContent = state;
    el.className = state === "ON" ? "on" : state === "OFF" ? "off" : "unknown";
  }

  function update(s) {
    document.getElementById("state").textContent = s.state;
    document.getElementById("label").textContent = s.label || "";
    document.getElementById("pause").textContent = s.state === "PAUSED" ? "Resume" : "Pause";
    setLevel("prox1", s.prox1);
    setLevel("prox2", s.prox2);
    var src = document.getElementById("source");
    src.textContent = (s.source.connected ? "connected" : "disconnected") + (s.source.kind ? " (" + s.source.kind + ")" : "");
    src.className = s.source.connected ? "connected" : "disconnected";
    document.getElementById("ticks").textContent = s.ticks;
    document.getElementById("p1r").textContent = s.edge_counts.prox1_rising;
    document.getElementById("p1f").textContent = s.edge_counts.prox1_falling;
    document.getElementById("p2r").textContent = s.edge_counts.prox2_rising;
    document.getElementById("p2f").textContent = s.edge_counts.prox2_falling;
    var list = document.getElementById("notices");
    list.innerHTML = "";
    (s.notices.length ? s.notices : [{ time: "", message: "none" }]).forEach(function(n) {
      var li = document.createElement("li");
      li.textContent = n.time ? n.time + " " + n.message : n.message;
      if (n.time) { li.className = "notice"; }
      list.appendChild(li);
    });
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        update(msg.status);
        if (msg.status.event !== "notice") { refreshChart(); }
      } catch (e) {}
    };
    ws.onclose = function() { setTimeout(connect, 2000); };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, table plant.Table) {
	// Snapshot has Uptime() and Label() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Label  string
		Plant  plant.Table
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Label:    snap.Label(),
		Plant:    table,
	}
	indexTmpl.Execute(w, data)
}
