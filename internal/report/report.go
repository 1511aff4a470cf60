// Package report encodes the relay status uplink.
//
// The payload is two bytes: a bitmask with bit i set when relay i+1 is on,
// and a reserved flags byte that is always zero.
package report

import (
	"fmt"

	"github.com/sweeney/relay-controller/internal/relay"
)

// Port is the application port status uplinks are sent on.
const Port = 2

// Size is the length of a status payload.
const Size = 2

// Encode builds the status payload for the given relay states.
func Encode(states [relay.NumChannels]bool) []byte {
	var mask byte
	for i, on := range states {
		if on {
			mask |= 1 << i
		}
	}
	return []byte{mask, 0}
}

// Decode reads the relay states back out of a status payload.
func Decode(payload []byte) ([relay.NumChannels]bool, error) {
	var states [relay.NumChannels]bool
	if len(payload) != Size {
		return states, fmt.Errorf("status payload: expected %d bytes, got %d", Size, len(payload))
	}
	for i := range states {
		states[i] = payload[0]&(1<<i) != 0
	}
	return states, nil
}
