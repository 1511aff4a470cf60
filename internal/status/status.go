// Package status provides a thread-safe status tracker for the relay-controller daemon.
// It is written by the control loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/relay-controller/internal/relay"
)

// NetworkInfo contains host network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs           int64
	StatusIntervalMs int64
	JoinRetryMs      int64
	Broker           string
	TopicPrefix      string
	StatusPort       uint8
	ActiveLow        bool
	HTTPPort         string
	WSBroker         string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Link is the upstream link state as seen by the control loop.
type Link struct {
	State            string // IDLE, JOINING or JOINED
	TransportReady   bool
	Joined           bool
	Class            string
	LastStatusSentAt time.Time
	LastDownlinkAt   time.Time
	RSSI             int
	SNR              float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Relays        []relay.ChannelStatus
	Link          Link
	LastCommand   string
	LastCommandAt time.Time
	StartTime     time.Time
	Now           time.Time
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets relay and link state. Called from the control loop on every step.
func (t *Tracker) Update(relays []relay.ChannelStatus, link Link) {
	cp := make([]relay.ChannelStatus, len(relays))
	copy(cp, relays)

	t.mu.Lock()
	t.snap.Relays = cp
	t.snap.Link = link
	t.mu.Unlock()
}

// SetLastCommand records the audit trail of the most recent command.
func (t *Tracker) SetLastCommand(audit string, at time.Time) {
	t.mu.Lock()
	t.snap.LastCommand = audit
	t.snap.LastCommandAt = at
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
