package controller

import (
	"bytes"
	"testing"
	"time"

	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/link"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/status"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ctrl    *Controller
	bank    *relay.Bank
	out     *gpio.FakeOutput
	link    *link.FakeTransport
	tracker *status.Tracker
	console *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	out := gpio.NewFakeOutput(relay.NumChannels)
	bank := relay.NewBank(out, false)
	tr := link.NewFakeTransport()
	tracker := status.NewTracker(t0, status.Config{})
	console := &bytes.Buffer{}
	return &harness{
		ctrl:    New(DefaultConfig(), bank, tr, tracker, console),
		bank:    bank,
		out:     out,
		link:    tr,
		tracker: tracker,
		console: console,
	}
}

// joined starts the controller, delivers a join at t0 and lets the join
// status complete at t0+10ms. Recorded uplinks are cleared.
func (h *harness) joined(t *testing.T) {
	t.Helper()
	h.ctrl.Start(t0)
	h.link.Inject(link.Event{Kind: link.EventJoined})
	h.ctrl.Step(t0)
	h.ctrl.Step(t0.Add(10 * time.Millisecond))
	if h.ctrl.State() != StateJoined {
		t.Fatalf("state: got %v, want JOINED", h.ctrl.State())
	}
	h.link.Sent = nil
	h.link.SendAttempts = 0
}

func (h *harness) lastUplink(t *testing.T) link.Uplink {
	t.Helper()
	if len(h.link.Sent) == 0 {
		t.Fatal("no uplink sent")
	}
	return h.link.Sent[len(h.link.Sent)-1]
}
