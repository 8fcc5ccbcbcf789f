package status

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/ionode/internal/command"
	"github.com/nerrad567/ionode/internal/link"
	"github.com/nerrad567/ionode/internal/session"
)

// Event types delivered to listeners.
const (
	EventLinkChanged    = "link.state_changed"
	EventSessionChanged = "session.state_changed"
	EventButtonChanged  = "button.changed"
	EventLEDChanged     = "led.changed"
	EventCommand        = "command.received"
	EventPublishDropped = "publish.dropped"
)

var (
	linkStates    = []string{link.StateDisconnected.String(), link.StateConnecting.String(), link.StateConnected.String()}
	sessionStates = []string{session.StateClosed.String(), session.StateOpening.String(), session.StateOpen.String()}
)

// Event is one change, as broadcast to listeners.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// LinkStatus is the link part of a snapshot.
type LinkStatus struct {
	State           string     `json:"state"`
	Addr            string     `json:"addr,omitempty"`
	ConnectAttempts uint64     `json:"connect_attempts"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
}

// SessionStatus is the session part of a snapshot.
type SessionStatus struct {
	State          string `json:"state"`
	PublishDropped uint64 `json:"publish_dropped"`
}

// ButtonStatus is the input part of a snapshot.
type ButtonStatus struct {
	Pin         int        `json:"pin"`
	Pressed     bool       `json:"pressed"`
	Transitions uint64     `json:"transitions"`
	LastChange  *time.Time `json:"last_change,omitempty"`
}

// LEDStatus is the output part of a snapshot.
type LEDStatus struct {
	Pin   int `json:"pin"`
	Level int `json:"level"`
}

// CommandStatus counts decoded command payloads.
type CommandStatus struct {
	On      uint64 `json:"on"`
	Off     uint64 `json:"off"`
	Ignored uint64 `json:"ignored"`
	Failed  uint64 `json:"failed"`
}

// Snapshot is the full observable node state.
type Snapshot struct {
	Device    string        `json:"device"`
	DeviceID  string        `json:"device_id"`
	Version   string        `json:"version"`
	BootCount int64         `json:"boot_count"`
	StartedAt time.Time     `json:"started_at"`
	Link      LinkStatus    `json:"link"`
	Session   SessionStatus `json:"session"`
	Button    ButtonStatus  `json:"button"`
	LED       LEDStatus     `json:"led"`
	Commands  CommandStatus `json:"commands"`
}

// Identity describes the node for the snapshot header.
type Identity struct {
	Device    string
	DeviceID  string
	Version   string
	BootCount int64
	ButtonPin int
	LEDPin    int
}

// Tracker aggregates node state from component callbacks.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listeners run on the caller's goroutine, outside the lock.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	metrics *metrics
	now     func() time.Time

	listenersMu sync.RWMutex
	listeners   []func(Event)
}

// NewTracker creates a tracker for a node with the given identity.
func NewTracker(id Identity) *Tracker {
	t := &Tracker{
		metrics: newMetrics(),
		now:     time.Now,
	}
	t.snap = Snapshot{
		Device:    id.Device,
		DeviceID:  id.DeviceID,
		Version:   id.Version,
		BootCount: id.BootCount,
		StartedAt: t.now().UTC(),
		Link:      LinkStatus{State: link.StateDisconnected.String()},
		Session:   SessionStatus{State: session.StateClosed.String()},
		Button:    ButtonStatus{Pin: id.ButtonPin},
		LED:       LEDStatus{Pin: id.LEDPin},
	}

	t.metrics.info.WithLabelValues(id.Version, id.DeviceID).Set(1)
	t.metrics.bootCount.Set(float64(id.BootCount))
	setOneHot(t.metrics.linkState, linkStates, t.snap.Link.State)
	setOneHot(t.metrics.sessionState, sessionStates, t.snap.Session.State)
	return t
}

// SetIdentity replaces the identity fields once storage has supplied the
// device id and boot count.
func (t *Tracker) SetIdentity(id Identity) {
	t.mu.Lock()
	prevVersion, prevID := t.snap.Version, t.snap.DeviceID
	t.snap.Device = id.Device
	t.snap.DeviceID = id.DeviceID
	t.snap.Version = id.Version
	t.snap.BootCount = id.BootCount
	t.snap.Button.Pin = id.ButtonPin
	t.snap.LED.Pin = id.LEDPin
	t.mu.Unlock()

	t.metrics.info.DeleteLabelValues(prevVersion, prevID)
	t.metrics.info.WithLabelValues(id.Version, id.DeviceID).Set(1)
	t.metrics.bootCount.Set(float64(id.BootCount))
}

// Registry returns the Prometheus registry holding the node metrics.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.metrics.registry
}

// Subscribe adds a listener for every subsequent change.
func (t *Tracker) Subscribe(listener func(Event)) {
	t.listenersMu.Lock()
	t.listeners = append(t.listeners, listener)
	t.listenersMu.Unlock()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// LinkChanged records a link state transition.
func (t *Tracker) LinkChanged(state link.State, addr string) {
	now := t.now().UTC()

	t.mu.Lock()
	t.snap.Link.State = state.String()
	t.snap.Link.Addr = addr
	switch state {
	case link.StateConnecting:
		t.snap.Link.ConnectAttempts++
		t.metrics.linkTransitions.Inc()
		t.snap.Link.ConnectedAt = nil
	case link.StateConnected:
		t.snap.Link.ConnectedAt = &now
	default:
		t.snap.Link.ConnectedAt = nil
	}
	data := t.snap.Link
	t.mu.Unlock()

	setOneHot(t.metrics.linkState, linkStates, state.String())
	t.emit(EventLinkChanged, now, data)
}

// SessionChanged records a session state transition.
func (t *Tracker) SessionChanged(state session.State) {
	now := t.now().UTC()

	t.mu.Lock()
	t.snap.Session.State = state.String()
	data := t.snap.Session
	t.mu.Unlock()

	setOneHot(t.metrics.sessionState, sessionStates, state.String())
	t.emit(EventSessionChanged, now, data)
}

// PublishDropped records a publish the session could not deliver.
func (t *Tracker) PublishDropped(topic string, reason error) {
	now := t.now().UTC()

	t.mu.Lock()
	t.snap.Session.PublishDropped++
	t.mu.Unlock()

	t.metrics.publishDropped.Inc()
	data := map[string]string{"topic": topic}
	if reason != nil {
		data["reason"] = reason.Error()
	}
	t.emit(EventPublishDropped, now, data)
}

// ButtonChanged records a debounced input transition.
func (t *Tracker) ButtonChanged(pressed bool) {
	now := t.now().UTC()

	t.mu.Lock()
	t.snap.Button.Pressed = pressed
	t.snap.Button.Transitions++
	t.snap.Button.LastChange = &now
	data := t.snap.Button
	t.mu.Unlock()

	t.metrics.buttonPressed.Set(boolGauge(pressed))
	t.metrics.buttonChanges.Inc()
	t.emit(EventButtonChanged, now, data)
}

// LEDChanged records a new output level.
func (t *Tracker) LEDChanged(level int) {
	now := t.now().UTC()

	t.mu.Lock()
	t.snap.LED.Level = level
	data := t.snap.LED
	t.mu.Unlock()

	t.metrics.ledLevel.Set(float64(level))
	t.emit(EventLEDChanged, now, data)
}

// CommandHandled records a dispatched command payload.
func (t *Tracker) CommandHandled(cmd command.Command, err error) {
	now := t.now().UTC()

	t.mu.Lock()
	switch {
	case err != nil:
		t.snap.Commands.Failed++
	case cmd == command.On:
		t.snap.Commands.On++
	case cmd == command.Off:
		t.snap.Commands.Off++
	default:
		t.snap.Commands.Ignored++
	}
	t.mu.Unlock()

	t.metrics.commands.WithLabelValues(cmd.String()).Inc()
	data := map[string]any{"command": cmd.String()}
	if err != nil {
		data["error"] = err.Error()
	}
	t.emit(EventCommand, now, data)
}

func (t *Tracker) emit(eventType string, at time.Time, data any) {
	t.listenersMu.RLock()
	listeners := make([]func(Event), len(t.listeners))
	copy(listeners, t.listeners)
	t.listenersMu.RUnlock()

	ev := Event{Type: eventType, Time: at, Data: data}
	for _, l := range listeners {
		l(ev)
	}
}
