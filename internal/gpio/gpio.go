// Package gpio drives the status LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// LED is a single on/off indicator.
type LED interface {
	// Set drives the LED on or off.
	Set(on bool) error

	// Close turns the LED off and releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip on Raspberry Pi boards.
const DefaultChip = "gpiochip0"

// Disabled is the pin value that turns the LED off entirely.
const Disabled = -1
