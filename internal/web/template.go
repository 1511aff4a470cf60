package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/relay-controller/internal/status"
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
	"inc":         func(i int) int { return i + 1 },
	"ceilSeconds": status.CeilSeconds,
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Relay Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Relay Controller{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Relays</h2>
<table>
{{range .Relays}}<tr><th>Relay {{inc .Channel}}</th><td id="relay-{{inc .Channel}}" class="{{if .On}}on{{else}}off{{end}}">{{if .On}}ON{{else}}OFF{{end}}{{if .Remaining}} ({{ceilSeconds .Remaining}}s left){{end}}</td></tr>
{{end}}</table>

<h2>Last Command</h2>
<table>
<tr><th>Audit</th><td>{{if .LastCommand}}{{.LastCommand}}{{else}}none{{end}}</td></tr>
<tr><th>At</th><td>{{stamp .LastCommandAt}}</td></tr>
</table>

<h2>Link</h2>
<table>
<tr><th>State</th><td class="{{if .Link.Joined}}connected{{else}}disconnected{{end}}">{{orUnknown .Link.State}}</td></tr>
<tr><th>Transport</th><td>{{if .Link.TransportReady}}ready{{else}}not ready{{end}}</td></tr>
{{if .Link.Class}}<tr><th>Class</th><td>{{.Link.Class}}</td></tr>{{end}}
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
<tr><th>Last status sent</th><td>{{stamp .Link.LastStatusSentAt}}</td></tr>
<tr><th>Last downlink</th><td>{{stamp .Link.LastDownlinkAt}}{{if not .Link.LastDownlinkAt.IsZero}} (RSSI {{.Link.RSSI}}, SNR {{.Link.SNR}}){{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} — {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Status interval</th><td>{{.Config.StatusIntervalMs}}ms</td></tr>
<tr><th>Join retry</th><td>{{.Config.JoinRetryMs}}ms</td></tr>
<tr><th>Active low</th><td>{{if .Config.ActiveLow}}yes{{else}}no{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.UplinkTopic}}";
  var dot = document.getElementById("live-dot");

  function setRelay(n, on) {
    var el = document.getElementById("relay-" + n);
    if (!el) return;
    el.textContent = on ? "ON" : "OFF";
    el.className = on ? "on" : "off";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  // Status uplink: byte 0 is the relay bitmask, bit i = relay i+1.
  client.on("message", function(t, payload) {
    if (payload.length !== 2) return;
    for (var i = 0; i < 8; i++) {
      setRelay(i + 1, (payload[0] >> i) & 1);
    }
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		UplinkTopic string
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		UplinkTopic: fmt.Sprintf("%s/up/%d", snap.Config.TopicPrefix, snap.Config.StatusPort),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
