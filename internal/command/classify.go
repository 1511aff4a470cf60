// Package command decodes relay control messages into relay intents.
//
// Three incompatible encodings share the downlink channel and carry no common
// envelope, so a payload is first classified by an ordered list of
// predicates and then parsed by the matching decoder:
//
//	FF <k> {<relay 1-8> <state> <dur lo> <dur hi>}*k   binary multi-relay
//	{"relay":3,"state":"on","duration":10}              structured text
//	{"relays":[{...},{...}]}                            structured text, several relays
//	01 <state<<7 | channel 0-7> [<dur>]                 compact binary
//
// Durations are seconds on the wire and leave this package as time.Duration.
// Relay numbers are 1-based in the binary multi-relay and structured formats
// and 0-based in the compact format; senders depend on this, so it is kept.
package command

// Format identifies the wire encoding of a downlink payload.
type Format int

const (
	FormatUnrecognized Format = iota
	FormatBinaryMulti
	FormatStructured
	FormatCompact
)

// MagicMulti is the leading byte of a binary multi-relay frame.
const MagicMulti = 0xFF

func (f Format) String() string {
	switch f {
	case FormatBinaryMulti:
		return "BIN"
	case FormatStructured:
		return "JSON"
	case FormatCompact:
		return "HEX"
	default:
		return "UNKNOWN"
	}
}

type classifier struct {
	format Format
	match  func(payload []byte) bool
}

// classifiers are evaluated in order; the first match wins.
var classifiers = []classifier{
	{FormatBinaryMulti, func(p []byte) bool { return len(p) >= 2 && p[0] == MagicMulti }},
	{FormatStructured, func(p []byte) bool { return len(p) > 0 && isPrintable(p) }},
	{FormatCompact, func(p []byte) bool { return len(p) > 0 }},
}

// Classify returns the wire format a downlink payload appears to use.
func Classify(payload []byte) Format {
	for _, c := range classifiers {
		if c.match(payload) {
			return c.format
		}
	}
	return FormatUnrecognized
}

func isPrintable(p []byte) bool {
	for _, b := range p {
		switch {
		case b >= 0x20 && b <= 0x7E:
		case b == '\t', b == '\r', b == '\n':
		default:
			return false
		}
	}
	return true
}
