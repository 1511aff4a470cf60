// Package controller ties the relay bank, the command decoders and the
// upstream link together. A Controller is driven from a single goroutine:
// Start once, then Step on every loop tick, with HandleLine for console input.
package controller

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/relay-controller/internal/link"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/report"
	"github.com/sweeney/relay-controller/internal/status"
)

// ErrReset is returned by HandleLine when the operator asks for a restart.
var ErrReset = errors.New("reset requested")

// ErrLinkNotReady is returned by SendStatus while the link is not joined.
var ErrLinkNotReady = errors.New("link not ready")

// State is the link lifecycle as seen by the controller.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateJoining:
		return "JOINING"
	case StateJoined:
		return "JOINED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the reporting and retry policy.
type Config struct {
	StatusInterval time.Duration // periodic status, measured from the last successful send
	StatusRetry    time.Duration // minimum gap between periodic attempts
	StatusPort     uint8
	Confirmed      bool
	JoinRetry      time.Duration // transport init and join retry while not joined
	SendTimeout    time.Duration // completion deadline for a queued status uplink
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		StatusInterval: 5 * time.Minute,
		StatusRetry:    30 * time.Second,
		StatusPort:     report.Port,
		JoinRetry:      2 * time.Minute,
		SendTimeout:    link.DefaultSendTimeout,
	}
}

// LinkStatus is the link state shared with diagnostics.
type LinkStatus struct {
	TransportReady   bool
	Joined           bool
	LastStatusSentAt time.Time
}

// Controller owns the relay bank and reacts to transport events and console
// lines. It is not safe for concurrent use.
type Controller struct {
	cfg     Config
	bank    *relay.Bank
	link    link.Transport
	tracker *status.Tracker
	out     io.Writer

	state           State
	ls              LinkStatus
	class           string
	lastInitAttempt time.Time
	lastJoinAttempt time.Time
	lastAttempt     time.Time // last status send attempt
	pendingSends    int
	lastDownlinkAt  time.Time
	lastMeta        link.Meta
	audit           string
}

// New creates a Controller. tracker may be nil; console output goes to out,
// or is discarded when out is nil.
func New(cfg Config, bank *relay.Bank, transport link.Transport, tracker *status.Tracker, out io.Writer) *Controller {
	d := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = d.StatusInterval
	}
	if cfg.StatusRetry <= 0 {
		cfg.StatusRetry = d.StatusRetry
	}
	if cfg.StatusPort == 0 {
		cfg.StatusPort = d.StatusPort
	}
	if cfg.JoinRetry <= 0 {
		cfg.JoinRetry = d.JoinRetry
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = d.SendTimeout
	}
	if out == nil {
		out = io.Discard
	}
	return &Controller{
		cfg:     cfg,
		bank:    bank,
		link:    transport,
		tracker: tracker,
		out:     out,
	}
}

// Start initializes the transport and requests the first join. A failed
// initialization leaves the controller Idle; Step retries it.
func (c *Controller) Start(now time.Time) {
	c.initTransport(now)
	c.publish(now)
}

// Step advances the controller by one loop iteration.
func (c *Controller) Step(now time.Time) {
	if c.state == StateIdle && now.Sub(c.lastInitAttempt) >= c.cfg.JoinRetry {
		c.initTransport(now)
	}

	for _, ev := range c.link.Pump() {
		c.handleEvent(ev, now)
	}

	if c.state == StateJoining && now.Sub(c.lastJoinAttempt) >= c.cfg.JoinRetry {
		log.Printf("controller: not joined after %v, retrying", c.cfg.JoinRetry)
		c.requestJoin(now)
	}

	// Timers run regardless of link state.
	for _, ch := range c.bank.Tick(now) {
		log.Printf("controller: R%d auto-off", ch+1)
	}

	// A completion lost from a full event queue must not block periodic status
	if c.pendingSends > 0 && now.Sub(c.lastAttempt) >= c.cfg.SendTimeout+c.cfg.StatusRetry {
		log.Printf("controller: %d status send(s) never completed, clearing", c.pendingSends)
		c.pendingSends = 0
	}

	if c.statusDue(now) {
		if err := c.SendStatus(now); err != nil {
			log.Printf("controller: periodic status: %v", err)
		}
	}

	c.publish(now)
}

// SendStatus queues a status uplink with the current relay states.
func (c *Controller) SendStatus(now time.Time) error {
	if !c.ls.Joined {
		log.Printf("controller: cannot send status: link not ready")
		return ErrLinkNotReady
	}

	payload := report.Encode(c.bank.States())
	c.lastAttempt = now
	if err := c.link.Send(payload, c.cfg.StatusPort, c.cfg.Confirmed); err != nil {
		log.Printf("controller: status send failed: %v", err)
		return fmt.Errorf("send status: %w", err)
	}
	c.pendingSends++
	log.Printf("controller: status queued on port %d: % X", c.cfg.StatusPort, payload)
	return nil
}

// Shutdown turns every relay off and closes the transport.
func (c *Controller) Shutdown(now time.Time) {
	c.bank.AllOff()
	if err := c.link.Close(); err != nil {
		log.Printf("controller: close transport: %v", err)
	}
	c.publish(now)
}

// State returns the current link lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// LinkStatus returns a copy of the link status.
func (c *Controller) LinkStatus() LinkStatus {
	return c.ls
}

// AuditTrail returns the description of the most recent command.
func (c *Controller) AuditTrail() string {
	return c.audit
}

func (c *Controller) initTransport(now time.Time) {
	c.lastInitAttempt = now
	if err := c.link.Init(); err != nil {
		log.Printf("controller: transport init failed: %v", err)
		return
	}
	log.Printf("controller: transport ready")
	c.ls.TransportReady = true
	c.state = StateJoining
	c.requestJoin(now)
}

func (c *Controller) requestJoin(now time.Time) {
	c.lastJoinAttempt = now
	if err := c.link.Join(); err != nil {
		log.Printf("controller: join request failed: %v", err)
		return
	}
	log.Printf("controller: join requested")
}

func (c *Controller) handleEvent(ev link.Event, now time.Time) {
	switch ev.Kind {
	case link.EventJoined:
		log.Printf("controller: joined")
		c.state = StateJoined
		c.ls.Joined = true
		if err := c.SendStatus(now); err != nil {
			log.Printf("controller: join status: %v", err)
		}

	case link.EventJoinFailed:
		log.Printf("controller: join failed: %v", ev.Err)
		if c.state != StateIdle {
			c.state = StateJoining
		}
		c.ls.Joined = false

	case link.EventLinkLost:
		log.Printf("controller: link lost: %v", ev.Err)
		if c.state == StateJoined {
			c.state = StateJoining
			c.lastJoinAttempt = now
		}
		c.ls.Joined = false
		c.pendingSends = 0

	case link.EventDownlink:
		c.lastDownlinkAt = now
		c.lastMeta = ev.Meta
		c.HandleDownlink(ev.Payload, ev.Port, now)

	case link.EventClassChanged:
		log.Printf("controller: device class %s", ev.Class)
		c.class = ev.Class

	case link.EventSendComplete:
		if c.pendingSends > 0 {
			c.pendingSends--
		}
		if ev.OK {
			c.ls.LastStatusSentAt = now
			log.Printf("controller: status sent")
		} else {
			log.Printf("controller: status send failed: %v", ev.Err)
		}

	default:
		log.Printf("controller: ignoring %v event", ev.Kind)
	}
}

func (c *Controller) statusDue(now time.Time) bool {
	return c.state == StateJoined &&
		c.pendingSends == 0 &&
		now.Sub(c.ls.LastStatusSentAt) >= c.cfg.StatusInterval &&
		now.Sub(c.lastAttempt) >= c.cfg.StatusRetry
}

func (c *Controller) setAudit(audit string, now time.Time) {
	c.audit = audit
	if c.tracker != nil {
		c.tracker.SetLastCommand(audit, now)
	}
}

func (c *Controller) publish(now time.Time) {
	if c.tracker == nil {
		return
	}
	c.tracker.Update(c.bank.Status(now), status.Link{
		State:            c.state.String(),
		TransportReady:   c.ls.TransportReady,
		Joined:           c.ls.Joined,
		Class:            c.class,
		LastStatusSentAt: c.ls.LastStatusSentAt,
		LastDownlinkAt:   c.lastDownlinkAt,
		RSSI:             c.lastMeta.RSSI,
		SNR:              c.lastMeta.SNR,
	})
}
