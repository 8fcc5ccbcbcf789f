package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// consumer is the label shown by gpioinfo for lines held by this process.
const consumer = "ionode"

type chipLine struct {
	line *gpiocdev.Line
	dir  Direction
	pull Pull
	out  int
}

// Chip is a Driver backed by a Linux GPIO character device.
//
// Lines are requested lazily on first use and reconfigured in place
// afterwards, so a pin is held for the lifetime of the Chip.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Chip struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	lines  map[int]*chipLine
	closed bool
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
//
// Returns:
//   - *Chip: Driver ready for use
//   - error: If the character device cannot be opened
func OpenChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", name, err)
	}
	return &Chip{
		chip:  c,
		lines: make(map[int]*chipLine),
	}, nil
}

// Reset implements Driver.
func (c *Chip) Reset(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	cl, ok := c.lines[pin]
	if !ok {
		line, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithBiasDisabled)
		if err != nil {
			return fmt.Errorf("requesting line %d: %w", pin, err)
		}
		c.lines[pin] = &chipLine{line: line, dir: Input, pull: PullNone}
		return nil
	}

	cl.dir, cl.pull, cl.out = Input, PullNone, 0
	return c.apply(pin, cl)
}

// SetDirection implements Driver.
func (c *Chip) SetDirection(pin int, dir Direction) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	cl, ok := c.lines[pin]
	if !ok {
		cl = &chipLine{dir: dir}
		line, err := c.chip.RequestLine(pin, lineOptions(cl)...)
		if err != nil {
			return fmt.Errorf("requesting line %d: %w", pin, err)
		}
		cl.line = line
		c.lines[pin] = cl
		return nil
	}

	cl.dir = dir
	return c.apply(pin, cl)
}

// SetPull implements Driver.
func (c *Chip) SetPull(pin int, pull Pull) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	cl, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	cl.pull = pull
	return c.apply(pin, cl)
}

// SetLevel implements Driver.
func (c *Chip) SetLevel(pin int, level int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if err := checkLevel(level); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	cl, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	if cl.dir != Output {
		return fmt.Errorf("%w: %d", ErrNotOutput, pin)
	}
	if err := cl.line.SetValue(level); err != nil {
		return fmt.Errorf("setting line %d: %w", pin, err)
	}
	cl.out = level
	return nil
}

// GetLevel implements Driver.
func (c *Chip) GetLevel(pin int) (int, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	cl, ok := c.lines[pin]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	v, err := cl.line.Value()
	if err != nil {
		return 0, fmt.Errorf("reading line %d: %w", pin, err)
	}
	return v, nil
}

// Close releases every requested line and the chip itself.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for pin, cl := range c.lines {
		if err := cl.line.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing line %d: %w", pin, err)
		}
	}
	c.lines = nil

	if err := c.chip.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing chip: %w", err)
	}
	return firstErr
}

// apply reconfigures a held line to match cl. Caller must hold c.mu.
func (c *Chip) apply(pin int, cl *chipLine) error {
	var opts []gpiocdev.LineConfigOption
	if cl.dir == Output {
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsOutput(cl.out)}
	} else {
		opts = []gpiocdev.LineConfigOption{gpiocdev.AsInput, biasOption(cl.pull)}
	}
	if err := cl.line.Reconfigure(opts...); err != nil {
		return fmt.Errorf("reconfiguring line %d: %w", pin, err)
	}
	return nil
}

// lineOptions builds the request options describing cl.
func lineOptions(cl *chipLine) []gpiocdev.LineReqOption {
	if cl.dir == Output {
		return []gpiocdev.LineReqOption{gpiocdev.AsOutput(cl.out)}
	}
	return []gpiocdev.LineReqOption{gpiocdev.AsInput, biasOption(cl.pull)}
}

func biasOption(p Pull) gpiocdev.LineBias {
	switch p {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}
