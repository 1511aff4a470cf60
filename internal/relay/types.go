// Package relay owns the logical state of the relay channels and their
// auto-off timers. Lines are driven through the Output interface, and every
// operation takes the current time as a parameter; nothing here sleeps or
// reads the clock.
package relay

import (
	"fmt"
	"time"
)

// NumChannels is the number of relay channels on the board.
const NumChannels = 8

// State represents the logical state of a relay channel.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Intent is a format-agnostic instruction to set one channel.
// Channel is 0-based. Hold is the auto-off delay; zero means permanent.
type Intent struct {
	Channel int
	On      bool
	Hold    time.Duration
}

// String renders the intent with the 1-based relay number operators use.
func (in Intent) String() string {
	s := fmt.Sprintf("R%d %s", in.Channel+1, stateOf(in.On))
	if in.On && in.Hold > 0 {
		s += " " + in.Hold.String()
	}
	return s
}

// ValidationError reports an intent addressing a channel that does not exist.
type ValidationError struct {
	Channel int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid relay %d (must be 1-%d)", e.Channel+1, NumChannels)
}

// ChannelStatus is a point-in-time view of one channel.
type ChannelStatus struct {
	Channel   int
	On        bool
	Remaining time.Duration // zero when no auto-off is pending
}

func stateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}
