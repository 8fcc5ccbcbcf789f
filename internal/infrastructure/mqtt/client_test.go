package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			URI:       "mqtt://127.0.0.1:1883",
			KeepAlive: 30,
		},
		Reconnect: config.MQTTReconnectConfig{
			Auto:         true,
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Debug(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{"mqtt://192.168.0.158:1883", "tcp://192.168.0.158:1883", false},
		{"mqtt://broker.local", "tcp://broker.local:1883", false},
		{"mqtts://broker.local", "ssl://broker.local:8883", false},
		{"mqtts://broker.local:9883", "ssl://broker.local:9883", false},
		{"tcp://10.0.0.1:1883", "tcp://10.0.0.1:1883", false},
		{"ws://10.0.0.1:9001/mqtt", "ws://10.0.0.1:9001/mqtt", false},
		{"http://10.0.0.1", "", true},
		{"mqtt://", "", true},
		{"::not a uri", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := BrokerURL(tt.endpoint)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Errorf("BrokerURL(%q) error = %v, want ErrInvalidEndpoint", tt.endpoint, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BrokerURL(%q) error = %v", tt.endpoint, err)
			}
			if got != tt.want {
				t.Errorf("BrokerURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"bnt/estado", false},
		{"led/acao", false},
		{"", true},
		{"led/+", true},
		{"led/#", true},
		{"led\x00acao", true},
	}

	for _, tt := range tests {
		err := ValidateTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateTopic(%q) error = %v, want ErrInvalidTopic", tt.topic, err)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"led/acao", false},
		{"led/+", false},
		{"led/#", false},
		{"#", false},
		{"+/+/state", false},
		{"", true},
		{"led/#/x", true},
		{"led/a#", true},
		{"led/a+", true},
	}

	for _, tt := range tests {
		if err := ValidateFilter(tt.filter); (err != nil) != tt.wantErr {
			t.Errorf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
	}
}

func TestClient_NotOpened(t *testing.T) {
	c := New(testConfig(), "ionode-test")

	if err := c.Publish("bnt/estado", []byte("1"), 0, false); !errors.Is(err, ErrNotOpened) {
		t.Errorf("Publish() error = %v, want ErrNotOpened", err)
	}

	handler := func(string, []byte) error { return nil }
	if err := c.Subscribe("led/acao", 0, handler); !errors.Is(err, ErrNotOpened) {
		t.Errorf("Subscribe() error = %v, want ErrNotOpened", err)
	}

	if c.IsConnected() {
		t.Error("IsConnected() = true before Open")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unopened client error = %v", err)
	}
}

func TestClient_ValidationBeforeConnection(t *testing.T) {
	c := New(testConfig(), "ionode-test")

	if err := c.Publish("bnt/#", []byte("1"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() wildcard error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("bnt/estado", []byte("1"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("bnt/estado", make([]byte, maxPayloadSize+1), 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() oversize error = %v, want ErrPublishFailed", err)
	}
	if err := c.Subscribe("led/acao", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() nil handler error = %v, want ErrSubscribeFailed", err)
	}
}

func TestClient_OpenInvalidEndpoint(t *testing.T) {
	c := New(testConfig(), "ionode-test")
	if err := c.Open("http://nowhere"); !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("Open() error = %v, want ErrInvalidEndpoint", err)
	}
}

func TestClient_StaleCallbacksIgnored(t *testing.T) {
	c := New(testConfig(), "ionode-test")

	var connects, disconnects, reconnects int
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(error) { disconnects++ })
	c.SetOnReconnecting(func() { reconnects++ })

	c.mu.Lock()
	c.gen = 2
	c.mu.Unlock()

	// Generation 1 belongs to a replaced client.
	c.handleConnect(1)
	c.handleDisconnect(1, errors.New("gone"))
	c.handleReconnecting(1)
	if connects+disconnects+reconnects != 0 {
		t.Errorf("stale callbacks delivered: connects=%d disconnects=%d reconnects=%d", connects, disconnects, reconnects)
	}

	c.handleConnect(2)
	c.handleDisconnect(2, errors.New("lost"))
	c.handleReconnecting(2)
	if connects != 1 || disconnects != 1 || reconnects != 1 {
		t.Errorf("current callbacks: connects=%d disconnects=%d reconnects=%d, want 1 each", connects, disconnects, reconnects)
	}
}

func TestClient_WrapHandler(t *testing.T) {
	c := New(testConfig(), "ionode-test")
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	ok := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})
	ok(nil, fakeMessage{topic: "led/acao", payload: []byte("1")})
	if got != "led/acao=1" {
		t.Errorf("handler received %q, want %q", got, "led/acao=1")
	}

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("boom") })
	failing(nil, fakeMessage{topic: "led/acao"})

	panicking := c.wrapHandler(func(string, []byte) error { panic("bad payload") })
	panicking(nil, fakeMessage{topic: "led/acao"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want 1 entry", logger.warns)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors = %v, want 1 entry", logger.errs)
	}
}
