package relay

import (
	"errors"
	"log"
	"strings"
	"time"
)

// Output drives the physical relay lines. high is the electrical level,
// not the logical relay state.
type Output interface {
	Set(channel int, high bool) error
}

type channel struct {
	on       bool
	deadline time.Time // zero = no auto-off
}

// Bank owns the state and auto-off deadlines of all relay channels.
// Not safe for concurrent use; the control loop is its only writer.
type Bank struct {
	out       Output
	activeLow bool
	ch        [NumChannels]channel
}

// NewBank creates a bank with every channel off and drives the outputs to
// the de-energized level. With activeLow set, a relay is energized by
// driving its line low.
func NewBank(out Output, activeLow bool) *Bank {
	b := &Bank{out: out, activeLow: activeLow}
	for i := range b.ch {
		b.drive(i, false)
	}
	return b
}

// OffLevel returns the electrical level that de-energizes a relay.
func OffLevel(activeLow bool) bool {
	return activeLow
}

// Apply sets one channel according to the intent and returns an audit string.
// An intent with an out-of-range channel returns a *ValidationError and
// leaves the bank untouched.
func (b *Bank) Apply(in Intent, now time.Time) (string, error) {
	if in.Channel < 0 || in.Channel >= NumChannels {
		return "", &ValidationError{Channel: in.Channel}
	}

	c := &b.ch[in.Channel]
	c.on = in.On
	if in.On && in.Hold > 0 {
		c.deadline = now.Add(in.Hold)
		log.Printf("relay: R%d ON for %v", in.Channel+1, in.Hold)
	} else {
		c.deadline = time.Time{}
		log.Printf("relay: R%d %s", in.Channel+1, stateOf(in.On))
	}
	b.drive(in.Channel, in.On)

	return in.String(), nil
}

// Execute applies intents in order, so a later intent for the same channel
// overrides an earlier one. Invalid intents are skipped; their errors are
// joined into the returned error.
func (b *Bank) Execute(intents []Intent, now time.Time) (string, error) {
	var audits []string
	var errs []error
	for _, in := range intents {
		audit, err := b.Apply(in, now)
		if err != nil {
			log.Printf("relay: %v", err)
			errs = append(errs, err)
			continue
		}
		audits = append(audits, audit)
	}
	return strings.Join(audits, "; "), errors.Join(errs...)
}

// Tick turns off every channel whose auto-off deadline has passed and returns
// the channels it switched. Calling it again with the same time is a no-op.
func (b *Bank) Tick(now time.Time) []int {
	var expired []int
	for i := range b.ch {
		c := &b.ch[i]
		if c.deadline.IsZero() || !c.on || c.deadline.After(now) {
			continue
		}
		log.Printf("relay: timer expired for R%d", i+1)
		c.on = false
		c.deadline = time.Time{}
		b.drive(i, false)
		expired = append(expired, i)
	}
	return expired
}

// AllOff switches every channel off and clears all deadlines.
func (b *Bank) AllOff() {
	for i := range b.ch {
		b.ch[i] = channel{}
		b.drive(i, false)
	}
}

// IsOn reports whether a channel is on. Out-of-range channels are off.
func (b *Bank) IsOn(ch int) bool {
	if ch < 0 || ch >= NumChannels {
		return false
	}
	return b.ch[ch].on
}

// States returns the on/off vector of all channels.
func (b *Bank) States() [NumChannels]bool {
	var s [NumChannels]bool
	for i, c := range b.ch {
		s[i] = c.on
	}
	return s
}

// Remaining returns the time left before a channel turns itself off,
// or zero if no auto-off is pending.
func (b *Bank) Remaining(ch int, now time.Time) time.Duration {
	if ch < 0 || ch >= NumChannels {
		return 0
	}
	c := b.ch[ch]
	if c.deadline.IsZero() || !c.on {
		return 0
	}
	if d := c.deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Status returns a view of every channel at the given time.
func (b *Bank) Status(now time.Time) []ChannelStatus {
	out := make([]ChannelStatus, NumChannels)
	for i := range b.ch {
		out[i] = ChannelStatus{
			Channel:   i,
			On:        b.ch[i].on,
			Remaining: b.Remaining(i, now),
		}
	}
	return out
}

func (b *Bank) drive(ch int, on bool) {
	if b.out == nil {
		return
	}
	// on XOR activeLow gives the electrical level
	if err := b.out.Set(ch, on != b.activeLow); err != nil {
		log.Printf("relay: drive R%d: %v", ch+1, err)
	}
}
