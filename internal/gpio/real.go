//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives relay lines on actual hardware using Linux GPIO character device.
type RealOutput struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealOutput requests one output line per pin. Every line starts at
// initialHigh so that relays are not energized while the process starts.
func NewRealOutput(chipName string, pins []int, initialHigh bool) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("relay-controller"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	o := &RealOutput{chip: chip}
	for i, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(level(initialHigh)))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request relay %d pin %d: %w", i+1, pin, err)
		}
		o.lines = append(o.lines, line)
	}
	return o, nil
}

// Set drives the line of a channel.
func (o *RealOutput) Set(channel int, high bool) error {
	if channel < 0 || channel >= len(o.lines) {
		return fmt.Errorf("channel %d has no line", channel)
	}
	if err := o.lines[channel].SetValue(level(high)); err != nil {
		return fmt.Errorf("set relay %d: %w", channel+1, err)
	}
	return nil
}

// Close releases all requested lines and the chip.
func (o *RealOutput) Close() error {
	var errs []error

	for i, line := range o.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay %d line: %w", i+1, err))
		}
	}
	o.lines = nil
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		o.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
