package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/relay-controller/internal/relay"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Relays        []RelayJSON  `json:"relays"`
	Link          LinkJSON     `json:"link"`
	LastCommand   *CommandJSON `json:"last_command,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// RelayJSON is one relay channel. Relay is 1-based.
type RelayJSON struct {
	Relay            int    `json:"relay"`
	State            string `json:"state"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

// LinkJSON reports upstream link state.
type LinkJSON struct {
	State          string   `json:"state"`
	TransportReady bool     `json:"transport_ready"`
	Joined         bool     `json:"joined"`
	Class          string   `json:"class,omitempty"`
	Broker         string   `json:"broker"`
	LastStatusSent string   `json:"last_status_sent,omitempty"`
	LastDownlink   string   `json:"last_downlink,omitempty"`
	RSSI           *int     `json:"rssi,omitempty"`
	SNR            *float64 `json:"snr,omitempty"`
}

// CommandJSON is the most recent command's audit trail.
type CommandJSON struct {
	Audit     string `json:"audit"`
	Timestamp string `json:"timestamp"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs           int64  `json:"tick_ms"`
	StatusIntervalMs int64  `json:"status_interval_ms"`
	JoinRetryMs      int64  `json:"join_retry_ms"`
	Broker           string `json:"broker"`
	TopicPrefix      string `json:"topic_prefix"`
	StatusPort       uint8  `json:"status_port"`
	ActiveLow        bool   `json:"active_low"`
	HTTPPort         string `json:"http_port"`
	WSBroker         string `json:"ws_broker,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// CeilSeconds rounds a remaining hold up to whole seconds, so a relay that is
// still on never shows 0.
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

func buildRelays(relays []relay.ChannelStatus) []RelayJSON {
	out := make([]RelayJSON, 0, len(relays))
	for _, r := range relays {
		state := relay.StateOff
		if r.On {
			state = relay.StateOn
		}
		out = append(out, RelayJSON{
			Relay:            r.Channel + 1,
			State:            string(state),
			RemainingSeconds: CeilSeconds(r.Remaining),
		})
	}
	return out
}

func buildLink(snap Snapshot) LinkJSON {
	state := snap.Link.State
	if state == "" {
		state = "UNKNOWN"
	}
	l := LinkJSON{
		State:          state,
		TransportReady: snap.Link.TransportReady,
		Joined:         snap.Link.Joined,
		Class:          snap.Link.Class,
		Broker:         snap.Config.Broker,
		LastStatusSent: formatTime(snap.Link.LastStatusSentAt),
		LastDownlink:   formatTime(snap.Link.LastDownlinkAt),
	}
	if !snap.Link.LastDownlinkAt.IsZero() {
		rssi, snr := snap.Link.RSSI, snap.Link.SNR
		l.RSSI = &rssi
		l.SNR = &snr
	}
	return l
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Relays:        buildRelays(snap.Relays),
		Link:          buildLink(snap),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			TickMs:           snap.Config.TickMs,
			StatusIntervalMs: snap.Config.StatusIntervalMs,
			JoinRetryMs:      snap.Config.JoinRetryMs,
			Broker:           snap.Config.Broker,
			TopicPrefix:      snap.Config.TopicPrefix,
			StatusPort:       snap.Config.StatusPort,
			ActiveLow:        snap.Config.ActiveLow,
			HTTPPort:         snap.Config.HTTPPort,
			WSBroker:         snap.Config.WSBroker,
		},
	}
	if snap.LastCommand != "" {
		inner.LastCommand = &CommandJSON{
			Audit:     snap.LastCommand,
			Timestamp: formatTime(snap.LastCommandAt),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// RelaysJSON is the body of the relay-only endpoint.
type RelaysJSON struct {
	Relays    []RelayJSON `json:"relays"`
	Timestamp string      `json:"timestamp"`
}

// FormatRelaysJSON returns only the relay states of a snapshot.
func FormatRelaysJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(RelaysJSON{
		Relays:    buildRelays(snap.Relays),
		Timestamp: snap.Now.UTC().Format(time.RFC3339),
	}, "", "  ")
	return data
}

// FormatRelayJSON returns one relay by its 1-based number. ok is false when
// the snapshot holds no such relay.
func FormatRelayJSON(snap Snapshot, num int) (data []byte, ok bool) {
	for _, r := range buildRelays(snap.Relays) {
		if r.Relay == num {
			data, _ = json.MarshalIndent(r, "", "  ")
			return data, true
		}
	}
	return nil, false
}
