package gpio

import (
	"fmt"
	"sync"
)

type memPin struct {
	dir        Direction
	pull       Pull
	configured bool
	out        int  // level driven by SetLevel
	ext        int  // level driven by the outside world
	extDriven  bool // whether ext overrides the pull
}

// Memory is an in-memory Driver.
//
// Inputs read the externally driven level when one is set with Drive,
// otherwise the level implied by the pull (up reads 1, none and down read 0).
// Outputs read back the last level written.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	pins   map[int]*memPin
	closed bool

	readErr error
	writes  map[int][]int
}

// NewMemory creates an empty in-memory driver.
func NewMemory() *Memory {
	return &Memory{
		pins:   make(map[int]*memPin),
		writes: make(map[int][]int),
	}
}

func (m *Memory) pin(pin int) *memPin {
	p, ok := m.pins[pin]
	if !ok {
		p = &memPin{}
		m.pins[pin] = p
	}
	return p
}

// Reset implements Driver.
func (m *Memory) Reset(pin int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	p := m.pin(pin)
	p.dir = Input
	p.pull = PullNone
	p.out = 0
	p.configured = true
	return nil
}

// SetDirection implements Driver.
func (m *Memory) SetDirection(pin int, dir Direction) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	p := m.pin(pin)
	p.dir = dir
	p.configured = true
	return nil
}

// SetPull implements Driver.
func (m *Memory) SetPull(pin int, pull Pull) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	p := m.pin(pin)
	if !p.configured {
		return fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	p.pull = pull
	return nil
}

// SetLevel implements Driver.
func (m *Memory) SetLevel(pin int, level int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if err := checkLevel(level); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	p := m.pin(pin)
	if !p.configured {
		return fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	if p.dir != Output {
		return fmt.Errorf("%w: %d", ErrNotOutput, pin)
	}
	p.out = level
	m.writes[pin] = append(m.writes[pin], level)
	return nil
}

// GetLevel implements Driver.
func (m *Memory) GetLevel(pin int) (int, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if m.readErr != nil {
		return 0, m.readErr
	}
	p := m.pin(pin)
	if !p.configured {
		return 0, fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	if p.dir == Output {
		return p.out, nil
	}
	if p.extDriven {
		return p.ext, nil
	}
	if p.pull == PullUp {
		return 1, nil
	}
	return 0, nil
}

// Close implements Driver.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Drive forces the externally observed level of an input pin,
// as a pressed button shorting the pin to ground would.
func (m *Memory) Drive(pin int, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pin(pin)
	p.ext = level
	p.extDriven = true
}

// Release stops driving a pin externally so it falls back to its pull.
func (m *Memory) Release(pin int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pin(pin).extDriven = false
}

// FailReads makes every subsequent GetLevel return err. Pass nil to clear.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Config returns the current direction and pull of a pin.
func (m *Memory) Config(pin int) (Direction, Pull) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pin(pin)
	return p.dir, p.pull
}

// Writes returns every level written to pin via SetLevel, in order.
func (m *Memory) Writes(pin int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.writes[pin]))
	copy(out, m.writes[pin])
	return out
}
