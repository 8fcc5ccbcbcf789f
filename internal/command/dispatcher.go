package command

import "sync"

// Actuator drives the output.
type Actuator interface {
	Set(level int) error
}

// Logger defines the logging interface for the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Dispatcher applies command payloads to an Actuator.
type Dispatcher struct {
	actuator Actuator
	logger   Logger

	callbackMu sync.RWMutex
	onCommand  func(cmd Command, err error)
}

// NewDispatcher creates a dispatcher for actuator.
func NewDispatcher(actuator Actuator) *Dispatcher {
	return &Dispatcher{
		actuator: actuator,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetOnCommand sets a callback invoked after every dispatched payload.
// err is the actuator error, if any.
func (d *Dispatcher) SetOnCommand(callback func(cmd Command, err error)) {
	d.callbackMu.Lock()
	d.onCommand = callback
	d.callbackMu.Unlock()
}

// Dispatch decodes payload and drives the actuator. Unrecognised payloads
// are logged and ignored; they are not errors.
func (d *Dispatcher) Dispatch(payload []byte) Command {
	cmd := Parse(payload)

	var err error
	if level, ok := cmd.Level(); ok {
		if err = d.actuator.Set(level); err != nil {
			d.logger.Warn("actuating output failed", "command", cmd.String(), "error", err)
		} else {
			d.logger.Info("output set", "command", cmd.String(), "level", level)
		}
	} else {
		d.logger.Info("ignoring command", "payload", string(payload))
	}

	d.callbackMu.RLock()
	callback := d.onCommand
	d.callbackMu.RUnlock()
	if callback != nil {
		callback(cmd, err)
	}
	return cmd
}
