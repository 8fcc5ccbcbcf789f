package output

import (
	"errors"
	"testing"

	"github.com/nerrad567/ionode/internal/infrastructure/gpio"
)

const ledPin = 2

func TestActuator_SetBeforeConfigure(t *testing.T) {
	a := New(gpio.NewMemory(), ledPin)

	if err := a.Set(1); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Set() error = %v, want ErrNotConfigured", err)
	}
}

func TestActuator_Configure(t *testing.T) {
	mem := gpio.NewMemory()
	a := New(mem, ledPin)

	if err := a.Configure(); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if dir, _ := mem.Config(ledPin); dir != gpio.Output {
		t.Errorf("direction = %v, want output", dir)
	}
	if a.Level() != 0 {
		t.Errorf("Level() = %d, want 0", a.Level())
	}
}

func TestActuator_Set(t *testing.T) {
	mem := gpio.NewMemory()
	a := New(mem, ledPin)
	if err := a.Configure(); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	var changes []int
	a.SetOnChange(func(level int) { changes = append(changes, level) })

	for _, level := range []int{1, 1, 0} {
		if err := a.Set(level); err != nil {
			t.Fatalf("Set(%d) error = %v", level, err)
		}
	}

	if got := mem.Writes(ledPin); len(got) != 3 {
		t.Errorf("pin writes = %v, want 3 writes", got)
	}
	if lvl, _ := mem.GetLevel(ledPin); lvl != 0 {
		t.Errorf("pin level = %d, want 0", lvl)
	}
	if len(changes) != 2 || changes[0] != 1 || changes[1] != 0 {
		t.Errorf("changes = %v, want [1 0]", changes)
	}
}

func TestActuator_SetInvalidLevel(t *testing.T) {
	a := New(gpio.NewMemory(), ledPin)
	_ = a.Configure()

	if err := a.Set(2); !errors.Is(err, gpio.ErrInvalidLevel) {
		t.Errorf("Set(2) error = %v, want ErrInvalidLevel", err)
	}
	if a.Level() != 0 {
		t.Errorf("Level() = %d after failed Set, want 0", a.Level())
	}
}

func TestActuator_ConfigureInvalidPin(t *testing.T) {
	a := New(gpio.NewMemory(), -1)

	if err := a.Configure(); !errors.Is(err, gpio.ErrInvalidPin) {
		t.Errorf("Configure() error = %v, want ErrInvalidPin", err)
	}
}
