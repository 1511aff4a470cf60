// Package link abstracts the upstream transport the relay box is reached over.
//
// Transports never call into the controller. Lifecycle notifications and
// downlinks are queued as Events and handed out by Pump, so the control loop
// sees them in order and on its own goroutine.
package link

import (
	"errors"
	"fmt"
)

// Transport is the upstream link.
type Transport interface {
	// Init prepares the transport with its configured credentials.
	// No network traffic is required for Init to succeed.
	Init() error

	// Join requests a network join. It does not block; the outcome is
	// reported as an EventJoined or EventJoinFailed from Pump.
	Join() error

	// Pump returns all events queued since the last call, oldest first.
	Pump() []Event

	// Send queues an uplink. It does not block; completion is reported as
	// an EventSendComplete from Pump.
	Send(payload []byte, port uint8, confirmed bool) error

	// Close disconnects and releases resources.
	Close() error
}

// Transport errors.
var (
	ErrNotInitialized = errors.New("transport not initialized")
	ErrNotJoined      = errors.New("link not joined")
)

// EventKind identifies a transport event.
type EventKind int

const (
	EventJoined EventKind = iota + 1
	EventJoinFailed
	EventLinkLost
	EventDownlink
	EventClassChanged
	EventSendComplete
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "JOINED"
	case EventJoinFailed:
		return "JOIN_FAILED"
	case EventLinkLost:
		return "LINK_LOST"
	case EventDownlink:
		return "DOWNLINK"
	case EventClassChanged:
		return "CLASS_CHANGED"
	case EventSendComplete:
		return "SEND_COMPLETE"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Meta carries radio quality for a downlink. Zero when the transport does
// not report it.
type Meta struct {
	RSSI int
	SNR  float64
}

// Event is a transport notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	Payload []byte // EventDownlink
	Port    uint8  // EventDownlink
	Meta    Meta   // EventDownlink
	Class   string // EventClassChanged, e.g. "A" or "C"
	OK      bool   // EventSendComplete
	Err     error  // EventJoinFailed, EventLinkLost, EventSendComplete
}
