package link

// Uplink is a payload recorded by FakeTransport.Send.
type Uplink struct {
	Payload   []byte
	Port      uint8
	Confirmed bool
}

// FakeTransport records calls and hands out injected events for tests.
type FakeTransport struct {
	// InitError, JoinError and SendError are returned by the matching call when set.
	InitError error
	JoinError error
	SendError error

	// AutoComplete queues a successful EventSendComplete after each Send.
	AutoComplete bool

	// JoinOnRequest queues EventJoined after each successful Join.
	JoinOnRequest bool

	Inits        int
	Joins        int
	SendAttempts int // including failed sends
	Sent         []Uplink

	// Closed tracks if Close was called.
	Closed bool

	pending []Event
}

// NewFakeTransport creates a FakeTransport that completes every send.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{AutoComplete: true}
}

// Inject queues events for the next Pump.
func (f *FakeTransport) Inject(events ...Event) {
	f.pending = append(f.pending, events...)
}

// Init counts the call.
func (f *FakeTransport) Init() error {
	f.Inits++
	return f.InitError
}

// Join counts the call.
func (f *FakeTransport) Join() error {
	f.Joins++
	if f.JoinError != nil {
		return f.JoinError
	}
	if f.JoinOnRequest {
		f.pending = append(f.pending, Event{Kind: EventJoined})
	}
	return nil
}

// Pump returns and clears injected events.
func (f *FakeTransport) Pump() []Event {
	events := f.pending
	f.pending = nil
	return events
}

// Send records the uplink.
func (f *FakeTransport) Send(payload []byte, port uint8, confirmed bool) error {
	f.SendAttempts++
	if f.SendError != nil {
		return f.SendError
	}
	body := make([]byte, len(payload))
	copy(body, payload)
	f.Sent = append(f.Sent, Uplink{Payload: body, Port: port, Confirmed: confirmed})
	if f.AutoComplete {
		f.pending = append(f.pending, Event{Kind: EventSendComplete, OK: true})
	}
	return nil
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded calls and queued events.
func (f *FakeTransport) Reset() {
	f.Inits = 0
	f.Joins = 0
	f.SendAttempts = 0
	f.Sent = nil
	f.Closed = false
	f.pending = nil
	f.InitError = nil
	f.JoinError = nil
	f.SendError = nil
}
