// Package gpio provides relay output driving with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives relay lines.
type Output interface {
	// Set drives the line of a channel (0-based) to the given electrical level.
	// Polarity is the caller's concern: high is not the same as "relay on"
	// on active-low boards.
	Set(channel int, high bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip the relay lines live on.
const DefaultChip = "gpiochip0"

// DefaultPins are the BCM line offsets of relays 1-8.
var DefaultPins = []int{5, 6, 13, 16, 19, 20, 21, 26}
