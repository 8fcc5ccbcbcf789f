package session

import (
	"fmt"
	"sync"
)

// State is the session lifecycle state.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

// String returns the state name used in logs and status output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// commandQoS is fire-and-forget for both directions.
const commandQoS byte = 0

// Transport is the messaging collaborator.
//
// Open starts an asynchronous connection attempt and reports the outcome
// later as events. Publish must be safe to call concurrently with event
// delivery.
type Transport interface {
	Open(endpoint string) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface for the session manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the fixed topics and reconnect policy.
type Config struct {
	// CommandTopic is subscribed on every connect; exact match only.
	CommandTopic string

	// ReopenOnLinkRestore re-issues Open from LinkRestored when the
	// session is Closed.
	ReopenOnLinkRestore bool
}

// Stats are monotonically increasing session counters.
type Stats struct {
	Opens      uint64
	Subscribes uint64
	Published  uint64
	Dropped    uint64
	Received   uint64
	Discarded  uint64
}

// Manager owns the session state and is the only path to the transport.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Transport calls and callbacks run outside the state lock.
type Manager struct {
	transport Transport
	cfg       Config
	logger    Logger

	mu       sync.Mutex
	state    State
	endpoint string
	stats    Stats

	callbackMu       sync.RWMutex
	onStateChange    func(State)
	onMessage        func(payload []byte)
	onPublishDropped func(topic string, reason error)
}

// NewManager creates a Closed session manager.
func NewManager(transport Transport, cfg Config) *Manager {
	return &Manager{
		transport: transport,
		cfg:       cfg,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger. Call before Open.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnStateChange sets a callback invoked after every state change.
func (m *Manager) SetOnStateChange(callback func(State)) {
	m.callbackMu.Lock()
	m.onStateChange = callback
	m.callbackMu.Unlock()
}

// SetOnMessage sets the inbound delivery hook for command-topic payloads.
func (m *Manager) SetOnMessage(callback func(payload []byte)) {
	m.callbackMu.Lock()
	m.onMessage = callback
	m.callbackMu.Unlock()
}

// SetOnPublishDropped sets a callback invoked for every dropped publish.
func (m *Manager) SetOnPublishDropped(callback func(topic string, reason error)) {
	m.callbackMu.Lock()
	m.onPublishDropped = callback
	m.callbackMu.Unlock()
}

// Open starts establishing a session against endpoint. It returns once the
// attempt is under way; the outcome arrives through HandleEvent.
//
// Parameters:
//   - endpoint: Broker URI, e.g. "mqtt://192.168.0.158:1883"
//
// Returns:
//   - error: The transport refused to start the attempt
func (m *Manager) Open(endpoint string) error {
	m.mu.Lock()
	m.endpoint = endpoint
	m.stats.Opens++
	m.mu.Unlock()

	m.setState(StateOpening)
	m.logger.Info("opening session", "endpoint", endpoint)

	if err := m.transport.Open(endpoint); err != nil {
		m.setState(StateClosed)
		return fmt.Errorf("opening session: %w", err)
	}
	return nil
}

// LinkRestored re-opens a session that was opened before and has since
// dropped to Closed. It does nothing while Opening or Open, before the
// first Open, or when re-opening is disabled.
func (m *Manager) LinkRestored() {
	if !m.cfg.ReopenOnLinkRestore {
		return
	}

	m.mu.Lock()
	endpoint := m.endpoint
	state := m.state
	m.mu.Unlock()

	if endpoint == "" || state != StateClosed {
		return
	}

	m.logger.Info("link restored, re-opening session")
	if err := m.Open(endpoint); err != nil {
		m.logger.Error("re-opening session failed", "error", err)
	}
}

// HandleEvent applies one transport event.
func (m *Manager) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case Connected:
		m.handleConnected()

	case Disconnected:
		m.logger.Warn("session disconnected", "error", e.Err)
		m.setState(StateClosed)

	case Reconnecting:
		m.logger.Info("session reconnecting")
		m.setState(StateOpening)

	case MessageReceived:
		m.handleMessage(e.Topic, e.Payload)

	default:
		m.logger.Error("unknown session event", "event", fmt.Sprintf("%T", ev))
	}
}

func (m *Manager) handleConnected() {
	m.mu.Lock()
	if m.state == StateOpen {
		m.mu.Unlock()
		m.logger.Debug("session already open, ignoring connected event")
		return
	}
	m.state = StateOpen
	m.stats.Subscribes++
	m.mu.Unlock()

	m.notifyState(StateOpen)
	m.logger.Info("session open, subscribing", "topic", m.cfg.CommandTopic)

	err := m.transport.Subscribe(m.cfg.CommandTopic, commandQoS, func(topic string, payload []byte) {
		m.HandleEvent(MessageReceived{Topic: topic, Payload: payload})
	})
	if err != nil {
		m.logger.Warn("subscribe failed", "topic", m.cfg.CommandTopic, "error", err)
	}
}

func (m *Manager) handleMessage(topic string, payload []byte) {
	m.mu.Lock()
	accept := m.state == StateOpen && topic == m.cfg.CommandTopic
	if accept {
		m.stats.Received++
	} else {
		m.stats.Discarded++
	}
	state := m.state
	m.mu.Unlock()

	if !accept {
		m.logger.Debug("discarding message", "topic", topic, "state", state.String())
		return
	}

	m.callbackMu.RLock()
	callback := m.onMessage
	m.callbackMu.RUnlock()
	if callback != nil {
		callback(payload)
	}
}

// Publish sends payload on topic at QoS 0, not retained. When the session
// is not Open, or the transport rejects the message, it is logged and
// dropped. The caller is never told.
func (m *Manager) Publish(topic string, payload []byte) {
	m.mu.Lock()
	state := m.state
	opened := m.endpoint != ""
	m.mu.Unlock()

	if state != StateOpen {
		reason := ErrNotOpen
		if !opened {
			reason = ErrNeverOpened
		}
		m.dropped(topic, reason)
		return
	}

	if err := m.transport.Publish(topic, payload, commandQoS, false); err != nil {
		m.dropped(topic, err)
		return
	}

	m.mu.Lock()
	m.stats.Published++
	m.mu.Unlock()
	m.logger.Debug("published", "topic", topic, "payload", string(payload))
}

func (m *Manager) dropped(topic string, reason error) {
	m.mu.Lock()
	m.stats.Dropped++
	m.mu.Unlock()

	m.logger.Warn("publish dropped", "topic", topic, "reason", reason)

	m.callbackMu.RLock()
	callback := m.onPublishDropped
	m.callbackMu.RUnlock()
	if callback != nil {
		callback(topic, reason)
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.mu.Unlock()

	if changed {
		m.notifyState(state)
	}
}

func (m *Manager) notifyState(state State) {
	m.callbackMu.RLock()
	callback := m.onStateChange
	m.callbackMu.RUnlock()
	if callback != nil {
		callback(state)
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a copy of the session counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
