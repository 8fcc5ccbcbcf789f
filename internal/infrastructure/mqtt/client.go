package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the node's messaging transport.
//
// Open is asynchronous: it starts a paho client that keeps retrying in the
// background and reports progress through the OnConnect, OnDisconnect and
// OnReconnecting callbacks. Each Open replaces the previous paho client;
// callbacks still in flight from a replaced client are dropped.
//
// Unlike a general-purpose client, subscriptions are not tracked or
// restored here. The session layer subscribes again on every connect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg      config.MQTTConfig
	clientID string

	// client is the current paho client; gen identifies it for callbacks.
	client pahomqtt.Client
	gen    uint64
	mu     sync.RWMutex

	onConnect      func()
	onDisconnect   func(err error)
	onReconnecting func()
	callbackMu     sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on paho's delivery goroutine and should not block.
// A returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// New creates an unopened client.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - clientID: Identifier presented to the broker
func New(cfg config.MQTTConfig, clientID string) *Client {
	return &Client{
		cfg:      cfg,
		clientID: clientID,
	}
}

// Open starts an asynchronous connection attempt to endpoint.
//
// Any previously opened paho client is disconnected and replaced. The
// call returns as soon as the attempt is started; success is reported
// through the OnConnect callback.
//
// Returns:
//   - error: ErrInvalidEndpoint if the URI cannot be used
func (c *Client) Open(endpoint string) error {
	brokerURL, err := BrokerURL(endpoint)
	if err != nil {
		return err
	}

	opts := buildClientOptions(c.cfg, brokerURL, c.clientID)

	c.mu.Lock()
	old := c.client
	c.gen++
	gen := c.gen

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect(gen)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(gen, err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.handleReconnecting(gen)
	})

	c.client = pahomqtt.NewClient(opts)
	client := c.client
	c.mu.Unlock()

	if old != nil {
		old.Disconnect(defaultDisconnectQuiesce)
	}

	token := client.Connect()
	go c.watchToken(token, "connect", brokerURL)

	return nil
}

// current returns the active paho client and its generation.
func (c *Client) current() (pahomqtt.Client, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client, c.gen
}

// isCurrent reports whether gen still identifies the active client.
func (c *Client) isCurrent(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen == gen
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect(gen uint64) {
	if !c.isCurrent(gen) {
		return
	}

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(gen uint64, err error) {
	if !c.isCurrent(gen) {
		return
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// handleReconnecting is called before paho's own reconnect attempt.
func (c *Client) handleReconnecting(gen uint64) {
	if !c.isCurrent(gen) {
		return
	}

	c.callbackMu.RLock()
	callback := c.onReconnecting
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// watchToken waits for a token in the background and logs a failure.
func (c *Client) watchToken(token pahomqtt.Token, op, target string) {
	if !token.WaitTimeout(defaultTokenTimeout) {
		if logger := c.getLogger(); logger != nil {
			logger.Debug("MQTT operation still pending", "op", op, "target", target)
		}
		return
	}
	if err := token.Error(); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT operation failed", "op", op, "target", target, "error", err)
		}
	}
}

// Close disconnects from the broker and forgets the paho client.
// Callbacks are not invoked for this disconnect.
//
// Returns:
//   - error: Always nil (connection already closed is not an error)
func (c *Client) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.gen++
	c.mu.Unlock()

	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the active paho client has a live connection.
func (c *Client) IsConnected() bool {
	client, _ := c.current()
	return client != nil && client.IsConnectionOpen()
}

// SetOnConnect sets a callback invoked on every (re)connect of the current client.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnReconnecting sets a callback invoked before each library-driven
// reconnect attempt. Only fires when mqtt.reconnect.auto is enabled.
func (c *Client) SetOnReconnecting(callback func()) {
	c.callbackMu.Lock()
	c.onReconnecting = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
