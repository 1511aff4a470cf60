package command

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/relay-controller/internal/relay"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Format
	}{
		{"empty", nil, FormatUnrecognized},
		{"magic only", []byte{0xFF}, FormatCompact},
		{"magic frame", []byte{0xFF, 0x00}, FormatBinaryMulti},
		{"magic with garbage", []byte{0xFF, 0x05, 0x01}, FormatBinaryMulti},
		{"json", []byte(`{"relay":1,"state":1}`), FormatStructured},
		{"json with newline", []byte("{\"relay\":1,\n\"state\":1}\r\n"), FormatStructured},
		{"short text", []byte("ab"), FormatStructured},
		{"compact", []byte{0x01, 0x80}, FormatCompact},
		{"compact with duration", []byte{0x01, 0x83, 0x0A}, FormatCompact},
		{"binary junk", []byte{0x10, 0x00, 0x7B, 0x7D}, FormatCompact},
		{"text with high byte", []byte("{\"relay\":1\x80}"), FormatCompact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.payload); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	want := map[Format]string{
		FormatBinaryMulti:  "BIN",
		FormatStructured:   "JSON",
		FormatCompact:      "HEX",
		FormatUnrecognized: "UNKNOWN",
	}
	for f, s := range want {
		if f.String() != s {
			t.Errorf("%d: got %q, want %q", int(f), f.String(), s)
		}
	}
}

// Scenario: 01 80 turns relay 1 on permanently.
func TestDecodeCompactRelayOn(t *testing.T) {
	f, intents, err := Decode([]byte{0x01, 0x80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != FormatCompact {
		t.Errorf("format: got %v, want HEX", f)
	}
	want := []relay.Intent{{Channel: 0, On: true}}
	assertIntents(t, intents, want)
}

func TestDecodeCompact(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    relay.Intent
	}{
		{"relay 1 off", []byte{0x01, 0x00}, relay.Intent{Channel: 0, On: false}},
		{"relay 8 on", []byte{0x01, 0x87}, relay.Intent{Channel: 7, On: true}},
		{"relay 4 on 10s", []byte{0x01, 0x83, 0x0A}, relay.Intent{Channel: 3, On: true, Hold: 10 * time.Second}},
		{"relay 2 on 255s", []byte{0x01, 0x81, 0xFF}, relay.Intent{Channel: 1, On: true, Hold: 255 * time.Second}},
		{"unused bits ignored", []byte{0x01, 0x7A}, relay.Intent{Channel: 2, On: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents, err := DecodeCompact(tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertIntents(t, intents, []relay.Intent{tt.want})
		})
	}
}

func TestDecodeCompactErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"empty", nil, ErrInvalidLength},
		{"type only", []byte{0x01}, ErrInvalidLength},
		{"too long", []byte{0x01, 0x80, 0x05, 0x00}, ErrInvalidLength},
		{"unknown type", []byte{0x02, 0x80}, ErrUnknownCommand},
		{"lone magic", []byte{0xFF}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCompact(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// Scenario: {"relay":3,"state":"ON","duration":10} holds relay 3 for 10s.
func TestDecodeStructuredSingleWithDuration(t *testing.T) {
	f, intents, err := Decode([]byte(`{"relay":3,"state":"ON","duration":10}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != FormatStructured {
		t.Errorf("format: got %v, want JSON", f)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 2, On: true, Hold: 10 * time.Second}})
}

func TestDecodeStructuredAllRelaysAndStates(t *testing.T) {
	for r := 1; r <= relay.NumChannels; r++ {
		for s := 0; s <= 1; s++ {
			payload := []byte(fmt.Sprintf(`{"relay":%d,"state":%d}`, r, s))
			_, intents, err := Decode(payload)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", payload, err)
			}
			assertIntents(t, intents, []relay.Intent{{Channel: r - 1, On: s == 1}})
		}
	}
}

func TestDecodeStructuredStateForms(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{`1`, true},
		{`0`, false},
		{`2`, false},
		{`true`, true},
		{`false`, false},
		{`"on"`, true},
		{`"On"`, true},
		{`"OFF"`, false},
		{`"1"`, true},
		{`"0"`, false},
		{`"TRUE"`, true},
		{`"false"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			intents, err := DecodeStructured([]byte(`{"relay":1,"state":` + tt.state + `}`))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(intents) != 1 || intents[0].On != tt.want {
				t.Errorf("got %+v, want On=%v", intents, tt.want)
			}
		})
	}
}

func TestDecodeStructuredMulti(t *testing.T) {
	payload := []byte(`{"relays":[
		{"relay":1,"state":true,"duration":5},
		{"relay":2,"state":"off"},
		{"relay":1,"state":0}
	]}`)
	intents, err := DecodeStructured(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{
		{Channel: 0, On: true, Hold: 5 * time.Second},
		{Channel: 1, On: false},
		{Channel: 0, On: false},
	})
}

func TestDecodeStructuredMultiSkipsInvalidEntries(t *testing.T) {
	payload := []byte(`{"relays":[{"relay":1},"junk",{"relay":4,"state":1}]}`)
	intents, err := DecodeStructured(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 3, On: true}})
}

func TestDecodeStructuredMultiEmpty(t *testing.T) {
	intents, err := DecodeStructured([]byte(`{"relays":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Errorf("expected no intents, got %v", intents)
	}
}

func TestDecodeStructuredSinglePrecedesMulti(t *testing.T) {
	intents, err := DecodeStructured([]byte(`{"relay":2,"state":1,"relays":[{"relay":5,"state":1}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 1, On: true}})
}

func TestDecodeStructuredPassesOutOfRangeRelay(t *testing.T) {
	intents, err := DecodeStructured([]byte(`{"relay":9,"state":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 8, On: true}})
}

func TestDecodeStructuredFractionalDuration(t *testing.T) {
	tests := []struct {
		payload string
		want    time.Duration
	}{
		{`{"relay":1,"state":1,"duration":2.5}`, 2500 * time.Millisecond},
		{`{"relay":1,"state":1,"duration":0.5}`, 500 * time.Millisecond},
		{`{"relay":1,"state":1,"duration":1e-12}`, time.Nanosecond},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			intents, err := DecodeStructured([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertIntents(t, intents, []relay.Intent{{Channel: 0, On: true, Hold: tt.want}})
		})
	}
}

// A sub-second duration is still a timed hold, not a permanent one.
func TestDecodeStructuredSubSecondDurationExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := relay.NewBank(nil, false)

	_, intents, err := Decode([]byte(`{"relay":1,"state":"on","duration":0.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := b.Execute(intents, now); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !b.IsOn(0) {
		t.Fatal("relay 1 should be on")
	}

	b.Tick(now.Add(time.Hour))
	if b.IsOn(0) {
		t.Error("relay 1 should have turned off")
	}
}

func TestDecodeStructuredToleratesComments(t *testing.T) {
	payload := []byte(`{
		// pump relay
		"relay": 5,
		"state": "on",
	}`)
	intents, err := DecodeStructured(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 4, On: true}})
}

// Scenario: {"relay":1} is missing its state.
func TestDecodeStructuredMissingState(t *testing.T) {
	f, intents, err := Decode([]byte(`{"relay":1}`))
	if f != FormatStructured {
		t.Errorf("format: got %v, want JSON", f)
	}
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("got %v, want ErrMissingFields", err)
	}
	if len(intents) != 0 {
		t.Errorf("expected no intents, got %v", intents)
	}
}

func TestDecodeStructuredErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `relay on`, ErrParse},
		{"truncated", `{"relay":1,"state":`, ErrParse},
		{"trailing garbage", `{"relay":1,"state":1} x`, ErrParse},
		{"array document", `[1,2]`, ErrMissingFields},
		{"number document", `42`, ErrMissingFields},
		{"empty object", `{}`, ErrMissingFields},
		{"state only", `{"state":1}`, ErrMissingFields},
		{"relays not array", `{"relays":{"relay":1,"state":1}}`, ErrMissingFields},
		{"relays all invalid", `{"relays":[{"relay":1},{"state":0}]}`, ErrMissingFields},
		{"relay string", `{"relay":"1","state":1}`, ErrMissingFields},
		{"relay fraction", `{"relay":1.5,"state":1}`, ErrMissingFields},
		{"state unknown word", `{"relay":1,"state":"maybe"}`, ErrMissingFields},
		{"state null", `{"relay":1,"state":null}`, ErrMissingFields},
		{"duration string", `{"relay":1,"state":1,"duration":"10"}`, ErrMissingFields},
		{"duration negative", `{"relay":1,"state":1,"duration":-1}`, ErrMissingFields},
		{"duration huge", `{"relay":1,"state":1,"duration":1e12}`, ErrMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStructured([]byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeBinaryMulti(t *testing.T) {
	payload := []byte{0xFF, 0x02, 0x01, 0x01, 0x00, 0x00, 0x02, 0x01, 0x05, 0x00}
	f, intents, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != FormatBinaryMulti {
		t.Errorf("format: got %v, want BIN", f)
	}
	assertIntents(t, intents, []relay.Intent{
		{Channel: 0, On: true},
		{Channel: 1, On: true, Hold: 5 * time.Second},
	})
}

func TestDecodeBinaryMultiStateZeroIsOff(t *testing.T) {
	payload := []byte{0xFF, 0x02, 0x01, 0x01, 0x00, 0x00, 0x02, 0x00, 0x05, 0x00}
	intents, err := DecodeBinaryMulti(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{
		{Channel: 0, On: true},
		{Channel: 1, On: false, Hold: 5 * time.Second},
	})
}

func TestDecodeBinaryMultiLittleEndianDuration(t *testing.T) {
	// 0x1388 = 5000 seconds
	intents, err := DecodeBinaryMulti([]byte{0xFF, 0x01, 0x08, 0x01, 0x88, 0x13})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 7, On: true, Hold: 5000 * time.Second}})
}

func TestDecodeBinaryMultiSkipsOutOfRangeRecord(t *testing.T) {
	payload := []byte{
		0xFF, 0x03,
		0x09, 0x01, 0x00, 0x00, // relay 9: skipped
		0x03, 0x01, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x00, // relay 0: skipped
	}
	intents, err := DecodeBinaryMulti(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 2, On: true}})
}

func TestDecodeBinaryMultiOrderPreserved(t *testing.T) {
	payload := []byte{
		0xFF, 0x02,
		0x04, 0x01, 0x00, 0x00,
		0x04, 0x00, 0x00, 0x00,
	}
	intents, err := DecodeBinaryMulti(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIntents(t, intents, []relay.Intent{{Channel: 3, On: true}, {Channel: 3, On: false}})
}

func TestDecodeBinaryMultiZeroRecords(t *testing.T) {
	intents, err := DecodeBinaryMulti([]byte{0xFF, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Errorf("expected no intents, got %v", intents)
	}
}

func TestDecodeBinaryMultiInvalidLength(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"short by one", []byte{0xFF, 0x01, 0x01, 0x01, 0x00}},
		{"long by one", []byte{0xFF, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00}},
		{"count without records", []byte{0xFF, 0x02}},
		{"too short", []byte{0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents, err := DecodeBinaryMulti(tt.payload)
			if !errors.Is(err, ErrInvalidLength) {
				t.Errorf("got %v, want ErrInvalidLength", err)
			}
			if intents != nil {
				t.Errorf("expected nil intents, got %v", intents)
			}
		})
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	f, _, err := Decode(nil)
	if f != FormatUnrecognized {
		t.Errorf("format: got %v, want UNKNOWN", f)
	}
	if !errors.Is(err, ErrInvalidLength) {
		t.Errorf("got %v, want ErrInvalidLength", err)
	}
}

func assertIntents(t *testing.T, got, want []relay.Intent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d intents, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("intent %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
