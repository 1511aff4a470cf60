package gpio

import "fmt"

// FakeOutput is a test double that records line levels.
type FakeOutput struct {
	// Levels holds the last level written to each line.
	Levels []bool

	// Writes records every Set call in order.
	Writes []Write

	// SetError, if set, will be returned by Set (the level is still recorded).
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// Write is a single recorded Set call.
type Write struct {
	Channel int
	High    bool
}

// NewFakeOutput creates a FakeOutput with n lines, all low.
func NewFakeOutput(n int) *FakeOutput {
	return &FakeOutput{Levels: make([]bool, n)}
}

// Set records the level for the channel.
func (f *FakeOutput) Set(channel int, high bool) error {
	if channel < 0 || channel >= len(f.Levels) {
		return fmt.Errorf("channel %d has no line", channel)
	}
	f.Levels[channel] = high
	f.Writes = append(f.Writes, Write{Channel: channel, High: high})
	return f.SetError
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and closes state, keeping the levels.
func (f *FakeOutput) Reset() {
	f.Writes = nil
	f.Closed = false
	f.SetError = nil
}
