package command

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/sweeney/relay-controller/internal/relay"
)

// Decode errors. Every error returned by this package wraps one of these.
var (
	ErrInvalidLength  = errors.New("invalid length")
	ErrParse          = errors.New("parse error")
	ErrMissingFields  = errors.New("missing relay/state")
	ErrUnknownCommand = errors.New("unknown command")
)

// CmdRelayControl is the compact command type for a single relay.
const CmdRelayControl = 0x01

// maxHoldSeconds bounds structured-text durations.
const maxHoldSeconds = 1<<32/1000 - 1

// Decode classifies a downlink payload and parses it with the matching
// decoder. The format is returned even when decoding fails.
func Decode(payload []byte) (Format, []relay.Intent, error) {
	f := Classify(payload)

	var (
		intents []relay.Intent
		err     error
	)
	switch f {
	case FormatBinaryMulti:
		intents, err = DecodeBinaryMulti(payload)
	case FormatStructured:
		intents, err = DecodeStructured(payload)
	case FormatCompact:
		intents, err = DecodeCompact(payload)
	default:
		err = fmt.Errorf("%w: empty payload", ErrInvalidLength)
	}
	return f, intents, err
}

// DecodeBinaryMulti parses a binary multi-relay frame. Records naming a relay
// outside 1-8 are skipped; the others are still returned.
func DecodeBinaryMulti(p []byte) ([]relay.Intent, error) {
	if len(p) < 2 || p[0] != MagicMulti {
		return nil, fmt.Errorf("%w: not a multi-relay frame", ErrInvalidLength)
	}

	k := int(p[1])
	want := 2 + 4*k
	if len(p) != want {
		return nil, fmt.Errorf("%w: expected %d bytes for %d relays, got %d", ErrInvalidLength, want, k, len(p))
	}

	intents := make([]relay.Intent, 0, k)
	for i := 0; i < k; i++ {
		rec := p[2+4*i : 6+4*i]
		num := int(rec[0])
		if num < 1 || num > relay.NumChannels {
			log.Printf("command: multi-relay record %d: invalid relay %d, skipped", i, num)
			continue
		}
		secs := binary.LittleEndian.Uint16(rec[2:4])
		intents = append(intents, relay.Intent{
			Channel: num - 1,
			On:      rec[1] != 0,
			Hold:    time.Duration(secs) * time.Second,
		})
	}
	return intents, nil
}

// DecodeCompact parses a compact binary command.
func DecodeCompact(p []byte) ([]relay.Intent, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidLength)
	}
	if p[0] != CmdRelayControl {
		return nil, fmt.Errorf("%w: type 0x%02X", ErrUnknownCommand, p[0])
	}
	if len(p) < 2 || len(p) > 3 {
		return nil, fmt.Errorf("%w: relay control takes 2-3 bytes, got %d", ErrInvalidLength, len(p))
	}

	in := relay.Intent{
		Channel: int(p[1] & 0x07),
		On:      p[1]&0x80 != 0,
	}
	if len(p) == 3 {
		in.Hold = time.Duration(p[2]) * time.Second
	}
	return []relay.Intent{in}, nil
}

// DecodeStructured parses a structured text command: either a single
// {"relay","state"[,"duration"]} object or a {"relays":[...]} list of them.
// Comments and trailing commas are tolerated.
func DecodeStructured(p []byte) ([]relay.Intent, error) {
	var doc any
	if err := json.Unmarshal(jsonc.ToJSON(p), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is not an object", ErrMissingFields)
	}

	_, hasRelay := obj["relay"]
	_, hasState := obj["state"]
	if hasRelay && hasState {
		in, err := objectIntent(obj)
		if err != nil {
			return nil, err
		}
		return []relay.Intent{in}, nil
	}

	list, ok := obj["relays"].([]any)
	if !ok {
		return nil, ErrMissingFields
	}

	intents := make([]relay.Intent, 0, len(list))
	for i, el := range list {
		elObj, ok := el.(map[string]any)
		if !ok {
			log.Printf("command: relays[%d]: not an object, skipped", i)
			continue
		}
		in, err := objectIntent(elObj)
		if err != nil {
			log.Printf("command: relays[%d]: %v, skipped", i, err)
			continue
		}
		intents = append(intents, in)
	}
	if len(list) > 0 && len(intents) == 0 {
		return nil, fmt.Errorf("%w: no valid entry in relays", ErrMissingFields)
	}
	return intents, nil
}

func objectIntent(obj map[string]any) (relay.Intent, error) {
	rv, ok := obj["relay"]
	if !ok {
		return relay.Intent{}, ErrMissingFields
	}
	num, ok := rv.(float64)
	if !ok || num != math.Trunc(num) || math.Abs(num) > math.MaxInt32 {
		return relay.Intent{}, fmt.Errorf("%w: relay must be an integer", ErrMissingFields)
	}

	sv, ok := obj["state"]
	if !ok {
		return relay.Intent{}, ErrMissingFields
	}
	on, err := parseState(sv)
	if err != nil {
		return relay.Intent{}, err
	}

	hold, err := parseDuration(obj["duration"])
	if err != nil {
		return relay.Intent{}, err
	}

	return relay.Intent{Channel: int(num) - 1, On: on, Hold: hold}, nil
}

func parseState(v any) (bool, error) {
	switch s := v.(type) {
	case float64:
		return s == 1, nil
	case bool:
		return s, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "1", "true":
			return true, nil
		case "off", "0", "false":
			return false, nil
		}
		return false, fmt.Errorf("%w: unknown state %q", ErrMissingFields, s)
	}
	return false, fmt.Errorf("%w: state must be a number, bool or string", ErrMissingFields)
}

func parseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if d < 0 || d > maxHoldSeconds {
			return 0, fmt.Errorf("%w: duration %v out of range", ErrMissingFields, d)
		}
		// Rounded up so a positive duration never becomes a permanent hold
		return time.Duration(math.Ceil(d * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("%w: duration must be a number", ErrMissingFields)
}
