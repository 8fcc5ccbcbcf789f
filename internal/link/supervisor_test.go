package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDriver records connect requests and lets tests emit events.
type fakeDriver struct {
	mu         sync.Mutex
	emit       func(Event)
	connects   int
	connectErr error
	startErr   error
	// onConnect, if set, runs inside Connect (e.g. to emit Connected).
	onConnect func()
}

func (d *fakeDriver) Start(_ context.Context, emit func(Event)) error {
	d.mu.Lock()
	d.emit = emit
	d.mu.Unlock()
	return d.startErr
}

func (d *fakeDriver) Connect(context.Context) error {
	d.mu.Lock()
	d.connects++
	hook := d.onConnect
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return d.connectErr
}

func (d *fakeDriver) send(ev Event) {
	d.mu.Lock()
	emit := d.emit
	d.mu.Unlock()
	emit(ev)
}

func (d *fakeDriver) connectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

func startSupervisor(t *testing.T) (*Supervisor, *fakeDriver) {
	t.Helper()
	d := &fakeDriver{}
	s := NewSupervisor(d)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s, d
}

func TestSupervisor_StartedIssuesConnect(t *testing.T) {
	s, d := startSupervisor(t)

	if st, _ := s.State(); st != StateDisconnected {
		t.Errorf("initial State() = %v, want disconnected", st)
	}

	d.send(Started{})

	if st, _ := s.State(); st != StateConnecting {
		t.Errorf("State() = %v, want connecting", st)
	}
	if d.connectCount() != 1 {
		t.Errorf("Connect() calls = %d, want 1", d.connectCount())
	}

	// Each repeated start signal triggers a fresh attempt.
	d.send(Started{})
	if d.connectCount() != 2 {
		t.Errorf("Connect() calls after second Started = %d, want 2", d.connectCount())
	}
}

func TestSupervisor_OneConnectPerDisconnect(t *testing.T) {
	s, d := startSupervisor(t)
	d.send(Started{})
	d.send(Connected{Addr: "192.168.0.42/24"})

	for i := 1; i <= 25; i++ {
		d.send(Disconnected{Reason: "beacon loss"})
		if got := d.connectCount(); got != 1+i {
			t.Fatalf("after %d disconnects Connect() calls = %d, want %d", i, got, 1+i)
		}
		if st, _ := s.State(); st != StateConnecting {
			t.Fatalf("State() = %v, want connecting", st)
		}
	}
}

func TestSupervisor_ConnectedSetsAddr(t *testing.T) {
	s, d := startSupervisor(t)
	d.send(Started{})
	d.send(Connected{Addr: "10.0.0.7/24"})

	st, addr := s.State()
	if st != StateConnected || addr != "10.0.0.7/24" {
		t.Errorf("State() = (%v, %q), want (connected, 10.0.0.7/24)", st, addr)
	}

	d.send(Disconnected{})
	if _, addr := s.State(); addr != "" {
		t.Errorf("addr after disconnect = %q, want empty", addr)
	}
}

func TestSupervisor_ConnectErrorKeepsConnecting(t *testing.T) {
	d := &fakeDriver{connectErr: errors.New("wpa_cli: no such file")}
	s := NewSupervisor(d)
	_ = s.Start(context.Background())

	d.send(Started{})
	if st, _ := s.State(); st != StateConnecting {
		t.Errorf("State() = %v, want connecting", st)
	}
}

func TestSupervisor_StartError(t *testing.T) {
	d := &fakeDriver{startErr: errors.New("no such interface")}
	s := NewSupervisor(d)
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() expected error")
	}
}

func TestSupervisor_StateChangeCallback(t *testing.T) {
	s, d := startSupervisor(t)

	type change struct {
		state State
		addr  string
	}
	var got []change
	s.SetOnStateChange(func(state State, addr string) {
		got = append(got, change{state, addr})
	})

	d.send(Started{})
	d.send(Connected{Addr: "10.0.0.7/24"})
	d.send(Disconnected{})

	want := []change{
		{StateConnecting, ""},
		{StateConnected, "10.0.0.7/24"},
		{StateConnecting, ""},
	}
	if len(got) != len(want) {
		t.Fatalf("callbacks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("callback %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSupervisor_WaitConnected(t *testing.T) {
	s, d := startSupervisor(t)
	d.send(Started{})

	result := make(chan error, 1)
	go func() { result <- s.WaitConnected(context.Background()) }()

	select {
	case err := <-result:
		t.Fatalf("WaitConnected() returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	d.send(Connected{Addr: "10.0.0.7/24"})

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("WaitConnected() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitConnected() did not return after Connected")
	}

	// Already connected returns immediately.
	if err := s.WaitConnected(context.Background()); err != nil {
		t.Errorf("WaitConnected() while connected error = %v", err)
	}
}

func TestSupervisor_WaitConnectedTimeout(t *testing.T) {
	s, d := startSupervisor(t)
	d.send(Started{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.WaitConnected(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitConnected() error = %v, want DeadlineExceeded", err)
	}
}

func TestSupervisor_ReentrantConnected(t *testing.T) {
	// Drivers may report Connected from inside Connect.
	d := &fakeDriver{}
	s := NewSupervisor(d)
	d.onConnect = func() { s.HandleEvent(Connected{Addr: "10.0.0.7/24"}) }
	_ = s.Start(context.Background())

	d.send(Started{})

	if st, _ := s.State(); st != StateConnected {
		t.Errorf("State() = %v, want connected", st)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		State(9):          "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
