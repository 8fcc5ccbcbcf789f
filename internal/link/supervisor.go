package link

import (
	"context"
	"fmt"
	"sync"
)

// State is the connectivity state owned by the Supervisor.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name used in logs and status output.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Driver is the link-layer collaborator.
type Driver interface {
	// Start brings the link layer up and begins delivering events to emit.
	// Events may be delivered from any goroutine but never concurrently.
	Start(ctx context.Context, emit func(Event)) error

	// Connect asks the link layer to (re)associate. It does not wait for
	// the association to complete.
	Connect(ctx context.Context) error
}

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor owns the connectivity state machine.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Driver.Connect and the state change callback run outside the lock.
type Supervisor struct {
	driver Driver
	logger Logger

	mu        sync.Mutex
	ctx       context.Context
	state     State
	addr      string
	connected chan struct{} // closed while state is StateConnected

	onStateChange func(state State, addr string)
	callbackMu    sync.RWMutex
}

// NewSupervisor creates a Supervisor in the disconnected state.
func NewSupervisor(driver Driver) *Supervisor {
	return &Supervisor{
		driver:    driver,
		logger:    noopLogger{},
		ctx:       context.Background(),
		connected: make(chan struct{}),
	}
}

// SetLogger sets the logger. Call before Start.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnStateChange sets a callback invoked after every state transition.
// addr is non-empty only for StateConnected.
func (s *Supervisor) SetOnStateChange(callback func(state State, addr string)) {
	s.callbackMu.Lock()
	s.onStateChange = callback
	s.callbackMu.Unlock()
}

// Start starts the driver. ctx bounds the driver and every connect attempt.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("starting link")
	if err := s.driver.Start(ctx, s.HandleEvent); err != nil {
		return fmt.Errorf("starting link driver: %w", err)
	}
	return nil
}

// HandleEvent applies one driver event to the state machine.
func (s *Supervisor) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case Started:
		s.logger.Info("link started, connecting")
		s.transition(StateConnecting, "")
		s.connect()

	case Disconnected:
		s.logger.Warn("link disconnected, reconnecting", "reason", e.Reason)
		s.transition(StateConnecting, "")
		s.connect()

	case Connected:
		s.logger.Info("link connected", "addr", e.Addr)
		s.transition(StateConnected, e.Addr)

	default:
		s.logger.Error("unknown link event", "event", fmt.Sprintf("%T", ev))
	}
}

// transition moves to state and notifies the observer.
func (s *Supervisor) transition(state State, addr string) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.addr = addr

	switch {
	case state == StateConnected && prev != StateConnected:
		close(s.connected)
	case state != StateConnected && prev == StateConnected:
		s.connected = make(chan struct{})
	}
	s.mu.Unlock()

	s.callbackMu.RLock()
	callback := s.onStateChange
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(state, addr)
	}
}

// connect issues exactly one connect attempt.
func (s *Supervisor) connect() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.driver.Connect(ctx); err != nil {
		s.logger.Error("link connect request failed", "error", err)
	}
}

// WaitConnected blocks until the link is connected or ctx is done.
func (s *Supervisor) WaitConnected(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.state == StateConnected {
			s.mu.Unlock()
			return nil
		}
		ch := s.connected
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("waiting for link: %w", ctx.Err())
		}
	}
}

// State returns the current state and, when connected, the address.
func (s *Supervisor) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.addr
}
