package gpio

import "errors"

// Sentinel errors for GPIO operations.
var (
	// ErrInvalidPin is returned for negative pin numbers.
	ErrInvalidPin = errors.New("gpio: invalid pin")

	// ErrInvalidLevel is returned when a level other than 0 or 1 is written.
	ErrInvalidLevel = errors.New("gpio: level must be 0 or 1")

	// ErrNotConfigured is returned when a pin is used before SetDirection.
	ErrNotConfigured = errors.New("gpio: pin not configured")

	// ErrNotOutput is returned when SetLevel is called on an input pin.
	ErrNotOutput = errors.New("gpio: pin is not an output")

	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("gpio: driver closed")
)
