// Package output drives the node's single digital output (the LED).
package output

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/ionode/internal/infrastructure/gpio"
)

// ErrNotConfigured is returned by Set before Configure has succeeded.
var ErrNotConfigured = errors.New("output: not configured")

// Actuator owns one output pin.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Actuator struct {
	driver gpio.Driver
	pin    int

	mu         sync.Mutex
	configured bool
	level      int

	callbackMu sync.RWMutex
	onChange   func(level int)
}

// New creates an actuator for pin. Call Configure before Set.
func New(driver gpio.Driver, pin int) *Actuator {
	return &Actuator{driver: driver, pin: pin}
}

// SetOnChange sets a callback invoked whenever the level actually changes.
func (a *Actuator) SetOnChange(callback func(level int)) {
	a.callbackMu.Lock()
	a.onChange = callback
	a.callbackMu.Unlock()
}

// Configure resets the pin and makes it an output. The level starts at 0.
func (a *Actuator) Configure() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.driver.Reset(a.pin); err != nil {
		return fmt.Errorf("resetting output pin %d: %w", a.pin, err)
	}
	if err := a.driver.SetDirection(a.pin, gpio.Output); err != nil {
		return fmt.Errorf("configuring output pin %d: %w", a.pin, err)
	}
	a.configured = true
	a.level = 0
	return nil
}

// Set drives the pin to level (0 or 1).
func (a *Actuator) Set(level int) error {
	a.mu.Lock()
	if !a.configured {
		a.mu.Unlock()
		return ErrNotConfigured
	}
	if err := a.driver.SetLevel(a.pin, level); err != nil {
		a.mu.Unlock()
		return fmt.Errorf("setting output pin %d: %w", a.pin, err)
	}
	changed := a.level != level
	a.level = level
	a.mu.Unlock()

	if changed {
		a.callbackMu.RLock()
		callback := a.onChange
		a.callbackMu.RUnlock()
		if callback != nil {
			callback(level)
		}
	}
	return nil
}

// Level returns the last level written.
func (a *Actuator) Level() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}
