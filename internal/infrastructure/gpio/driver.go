package gpio

import "fmt"

// Direction is the configured direction of a pin.
type Direction int

const (
	// Input configures the pin for reading.
	Input Direction = iota
	// Output configures the pin for driving.
	Output
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Pull is the internal bias applied to an input pin.
type Pull int

const (
	// PullNone leaves the pin floating.
	PullNone Pull = iota
	// PullUp biases the pin towards level 1.
	PullUp
	// PullDown biases the pin towards level 0.
	PullDown
)

// String returns the pull mode name.
func (p Pull) String() string {
	switch p {
	case PullNone:
		return "none"
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return fmt.Sprintf("pull(%d)", int(p))
	}
}

// Driver is the minimal pin interface used by the actuator and sampler.
//
// Implementations must be safe for concurrent use; the actuator and
// sampler run on different goroutines against different pins.
type Driver interface {
	// Reset returns a pin to its default state (input, no pull).
	Reset(pin int) error

	// SetDirection configures a pin as input or output.
	SetDirection(pin int, dir Direction) error

	// SetPull sets the bias of an input pin.
	SetPull(pin int, pull Pull) error

	// SetLevel drives an output pin to 0 or 1.
	SetLevel(pin int, level int) error

	// GetLevel reads the current level of a pin.
	GetLevel(pin int) (int, error)

	// Close releases every pin held by the driver.
	Close() error
}

func checkPin(pin int) error {
	if pin < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	return nil
}

func checkLevel(level int) error {
	if level != 0 && level != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLevel, level)
	}
	return nil
}
