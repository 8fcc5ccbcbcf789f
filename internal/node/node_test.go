package node

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
	"github.com/nerrad567/ionode/internal/infrastructure/database"
	"github.com/nerrad567/ionode/internal/infrastructure/gpio"
	"github.com/nerrad567/ionode/internal/link"
	"github.com/nerrad567/ionode/internal/session"
)

const (
	ledPin    = 2
	buttonPin = 4
)

// fakeLink reports Started on Start and, when autoConnect is set, an
// address on every connect request.
type fakeLink struct {
	mu          sync.Mutex
	emit        func(link.Event)
	autoConnect bool
	connects    int
	stopped     bool
}

func (l *fakeLink) Start(_ context.Context, emit func(link.Event)) error {
	l.mu.Lock()
	l.emit = emit
	l.mu.Unlock()
	emit(link.Started{})
	return nil
}

func (l *fakeLink) Connect(context.Context) error {
	l.mu.Lock()
	l.connects++
	auto, emit := l.autoConnect, l.emit
	l.mu.Unlock()
	if auto {
		emit(link.Connected{Addr: "192.168.0.42/24"})
	}
	return nil
}

func (l *fakeLink) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	return nil
}

func (l *fakeLink) send(ev link.Event) {
	l.mu.Lock()
	emit := l.emit
	l.mu.Unlock()
	emit(ev)
}

// fakeTransport connects synchronously on Open when connectOnOpen is set.
type fakeTransport struct {
	mu             sync.Mutex
	clientID       string
	connectOnOpen  bool
	opens          []string
	subs           []string
	retained       string
	healthErr      error
	handler        func(string, []byte)
	pubs           []string
	closed         bool
	onConnect      func()
	onDisconnect   func(error)
	onReconnecting func()
}

func (f *fakeTransport) Open(endpoint string) error {
	f.mu.Lock()
	f.opens = append(f.opens, endpoint)
	connect, cb := f.connectOnOpen, f.onConnect
	f.mu.Unlock()
	if connect && cb != nil {
		cb()
	}
	return nil
}

// Subscribe delivers the retained payload, if any, before returning, the
// way a broker does right after SUBACK.
func (f *fakeTransport) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	f.mu.Lock()
	f.subs = append(f.subs, topic)
	f.handler = handler
	retained := f.retained
	f.mu.Unlock()
	if retained != "" {
		handler(topic, []byte(retained))
	}
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, topic+"="+string(payload))
	return nil
}

func (f *fakeTransport) SetOnConnect(cb func()) {
	f.mu.Lock()
	f.onConnect = cb
	f.mu.Unlock()
}

func (f *fakeTransport) SetOnDisconnect(cb func(error)) {
	f.mu.Lock()
	f.onDisconnect = cb
	f.mu.Unlock()
}

func (f *fakeTransport) SetOnReconnecting(cb func()) {
	f.mu.Lock()
	f.onReconnecting = cb
	f.mu.Unlock()
}

func (f *fakeTransport) HealthCheck(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(topic, []byte(payload))
}

func (f *fakeTransport) disconnect(err error) {
	f.mu.Lock()
	cb := f.onDisconnect
	f.mu.Unlock()
	cb(err)
}

func (f *fakeTransport) snapshot() (opens, subs, pubs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opens...), append([]string(nil), f.subs...), append([]string(nil), f.pubs...)
}

type fakeTelemetry struct {
	mu      sync.Mutex
	buttons []bool
	leds    []int
	links   []string
	session []string
}

func (t *fakeTelemetry) WriteButton(p bool) {
	t.mu.Lock()
	t.buttons = append(t.buttons, p)
	t.mu.Unlock()
}

func (t *fakeTelemetry) WriteLED(l int) {
	t.mu.Lock()
	t.leds = append(t.leds, l)
	t.mu.Unlock()
}

func (t *fakeTelemetry) WriteLinkState(s, _ string) {
	t.mu.Lock()
	t.links = append(t.links, s)
	t.mu.Unlock()
}
func (t *fakeTelemetry) WriteSessionState(s string) {
	t.mu.Lock()
	t.session = append(t.session, s)
	t.mu.Unlock()
}

type harness struct {
	node      *Node
	link      *fakeLink
	transport *fakeTransport
	mem       *gpio.Memory
	telemetry *fakeTelemetry
	db        *database.DB
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("IONODE_GPIO_DRIVER", "memory")
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	cfg.Database.Path = filepath.Join(t.TempDir(), "ionode.db")
	cfg.Sampler.PollInterval = 1
	cfg.Sampler.Debounce = 5
	cfg.MQTT.Broker.ClientID = ""
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, autoConnect bool) *harness {
	t.Helper()

	db, err := database.Open(cfg.Database)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		link:      &fakeLink{autoConnect: autoConnect},
		transport: &fakeTransport{connectOnOpen: true},
		mem:       gpio.NewMemory(),
		telemetry: &fakeTelemetry{},
		db:        db,
	}

	n, err := New(Deps{
		Config:  cfg,
		Version: "test",
		DB:      db,
		Link:    h.link,
		GPIO:    h.mem,
		NewTransport: func(clientID string) Transport {
			h.transport.clientID = clientID
			return h.transport
		},
		Telemetry: h.telemetry,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.node = n
	t.Cleanup(func() { n.Stop() })
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	if err := h.node.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	cfg := testConfig(t)
	tests := []struct {
		name string
		deps Deps
	}{
		{"no config", Deps{}},
		{"no database", Deps{Config: cfg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNode_StartupSequence(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(t, cfg, true)
	h.start(t)

	opens, subs, _ := h.transport.snapshot()
	if len(opens) != 1 || opens[0] != cfg.MQTT.Broker.URI {
		t.Errorf("transport opens = %v, want [%s]", opens, cfg.MQTT.Broker.URI)
	}
	if len(subs) != 1 || subs[0] != "led/acao" {
		t.Errorf("subscriptions = %v, want [led/acao]", subs)
	}

	if dir, _ := h.mem.Config(ledPin); dir != gpio.Output {
		t.Errorf("LED direction = %v, want output", dir)
	}
	if dir, pull := h.mem.Config(buttonPin); dir != gpio.Input || pull != gpio.PullUp {
		t.Errorf("button config = %v/%v, want input/up", dir, pull)
	}

	snap := h.node.Tracker().Snapshot()
	if snap.DeviceID == "" || snap.BootCount != 1 {
		t.Errorf("identity = %q/%d, want device id and boot 1", snap.DeviceID, snap.BootCount)
	}
	if h.transport.clientID != snap.DeviceID {
		t.Errorf("client id = %q, want device id %q", h.transport.clientID, snap.DeviceID)
	}
	if snap.Link.State != "connected" || snap.Session.State != "open" {
		t.Errorf("link/session = %s/%s, want connected/open", snap.Link.State, snap.Session.State)
	}
	if err := h.node.SessionHealth(context.Background()); err != nil {
		t.Errorf("SessionHealth() = %v", err)
	}
	if err := h.node.LinkHealth(context.Background()); err != nil {
		t.Errorf("LinkHealth() = %v", err)
	}
}

func TestNode_RetainedCommandAppliedOnSubscribe(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(t, cfg, true)
	h.transport.retained = "1"
	h.start(t)

	if lvl, _ := h.mem.GetLevel(ledPin); lvl != 1 {
		t.Errorf("LED level = %d, want 1", lvl)
	}
	if got := h.node.Tracker().Snapshot().Commands; got.On != 1 {
		t.Errorf("Commands = %+v, want 1 on", got)
	}
}

func TestNode_SessionHealthChecksTransport(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.start(t)

	lost := errors.New("not connected")
	h.transport.mu.Lock()
	h.transport.healthErr = lost
	h.transport.mu.Unlock()

	if err := h.node.SessionHealth(context.Background()); !errors.Is(err, lost) {
		t.Errorf("SessionHealth() = %v, want %v", err, lost)
	}
}

func TestNode_ConfiguredClientID(t *testing.T) {
	cfg := testConfig(t)
	cfg.MQTT.Broker.ClientID = "bench-node"
	h := newHarness(t, cfg, true)
	h.start(t)

	if h.transport.clientID != "bench-node" {
		t.Errorf("client id = %q, want bench-node", h.transport.clientID)
	}
}

func TestNode_CommandDrivesLED(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.start(t)

	h.transport.deliver("led/acao", "1")

	if lvl, _ := h.mem.GetLevel(ledPin); lvl != 1 {
		t.Errorf("LED level = %d, want 1", lvl)
	}
	if _, _, pubs := h.transport.snapshot(); len(pubs) != 0 {
		t.Errorf("publishes = %v, want none", pubs)
	}

	h.transport.deliver("led/acao", "9")
	if lvl, _ := h.mem.GetLevel(ledPin); lvl != 1 {
		t.Errorf("LED level after unknown command = %d, want 1", lvl)
	}
	if got := h.node.Tracker().Snapshot().Commands; got.On != 1 || got.Ignored != 1 {
		t.Errorf("Commands = %+v, want 1 on and 1 ignored", got)
	}
}

func TestNode_ButtonPressPublishes(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.start(t)

	h.mem.Drive(buttonPin, 0)

	eventually(t, "press publish", func() bool {
		_, _, pubs := h.transport.snapshot()
		return len(pubs) == 1 && pubs[0] == "bnt/estado=1"
	})

	h.mem.Drive(buttonPin, 1)
	eventually(t, "release publish", func() bool {
		_, _, pubs := h.transport.snapshot()
		return len(pubs) == 2 && pubs[1] == "bnt/estado=0"
	})
}

func TestNode_SessionReopensWhenLinkReturns(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.start(t)

	// The link drops; the broker connection goes with it.
	h.link.mu.Lock()
	h.link.autoConnect = false
	h.link.mu.Unlock()
	h.link.send(link.Disconnected{Reason: "beacon loss"})
	h.transport.disconnect(errors.New("connection lost"))

	if st := h.node.session.State(); st != session.StateClosed {
		t.Fatalf("session state = %v, want closed", st)
	}

	// The link comes back: the session re-opens and resubscribes.
	h.link.send(link.Connected{Addr: "192.168.0.43/24"})

	opens, subs, _ := h.transport.snapshot()
	if len(opens) != 2 {
		t.Errorf("transport opens = %d, want 2", len(opens))
	}
	if len(subs) != 2 {
		t.Errorf("subscriptions = %d, want 2", len(subs))
	}

	h.transport.deliver("led/acao", "1")
	if lvl, _ := h.mem.GetLevel(ledPin); lvl != 1 {
		t.Errorf("LED level = %d, want 1", lvl)
	}
}

func TestNode_ConnectWaitTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Link.ConnectWaitTimeout = 1
	h := newHarness(t, cfg, false)

	start := time.Now()
	h.start(t)
	if waited := time.Since(start); waited < time.Second {
		t.Errorf("Start() returned after %v, want at least 1s", waited)
	}

	// The session is still opened so it connects as soon as the broker is reachable.
	if opens, _, _ := h.transport.snapshot(); len(opens) != 1 {
		t.Errorf("transport opens = %d, want 1", len(opens))
	}
	if err := h.node.LinkHealth(context.Background()); err == nil {
		t.Error("LinkHealth() = nil, want error")
	}
}

func TestNode_StartCancelledWhileWaiting(t *testing.T) {
	h := newHarness(t, testConfig(t), false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if err := h.node.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
}

func TestNode_BootCountPersists(t *testing.T) {
	cfg := testConfig(t)
	first := newHarness(t, cfg, true)
	first.start(t)
	firstID := first.node.Tracker().Snapshot().DeviceID
	if err := first.node.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	second := newHarness(t, cfg, true)
	second.start(t)
	snap := second.node.Tracker().Snapshot()
	if snap.BootCount != 2 {
		t.Errorf("BootCount = %d, want 2", snap.BootCount)
	}
	if snap.DeviceID != firstID {
		t.Errorf("DeviceID = %q, want %q", snap.DeviceID, firstID)
	}
}

func TestNode_Telemetry(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.start(t)

	h.transport.deliver("led/acao", "1")

	h.telemetry.mu.Lock()
	defer h.telemetry.mu.Unlock()
	if len(h.telemetry.leds) != 1 || h.telemetry.leds[0] != 1 {
		t.Errorf("LED telemetry = %v, want [1]", h.telemetry.leds)
	}
	if len(h.telemetry.links) == 0 || h.telemetry.links[len(h.telemetry.links)-1] != "connected" {
		t.Errorf("link telemetry = %v, want ending in connected", h.telemetry.links)
	}
	if len(h.telemetry.session) == 0 || h.telemetry.session[len(h.telemetry.session)-1] != "open" {
		t.Errorf("session telemetry = %v, want ending in open", h.telemetry.session)
	}
}

func TestNode_Stop(t *testing.T) {
	h := newHarness(t, testConfig(t), true)
	h.start(t)

	if err := h.node.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := h.node.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	h.transport.mu.Lock()
	closed := h.transport.closed
	h.transport.mu.Unlock()
	if !closed {
		t.Error("transport not closed")
	}
	h.link.mu.Lock()
	stopped := h.link.stopped
	h.link.mu.Unlock()
	if !stopped {
		t.Error("link driver not stopped")
	}
}
