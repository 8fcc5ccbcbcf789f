package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single TCP/MQTT handshake attempt inside paho.
	defaultConnectTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the config leaves keep_alive at 0.
	defaultKeepAlive = 60 * time.Second

	// defaultTokenTimeout bounds how long a background watcher waits on a token
	// before giving up on reporting its result.
	defaultTokenTimeout = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for mqtts:// endpoints.
	tlsMinVersion = tls.VersionTLS12
)

// BrokerURL converts an endpoint URI into the form paho expects.
//
// Supported schemes:
//   - mqtt://host[:port]  -> tcp://host:port (default port 1883)
//   - mqtts://host[:port] -> ssl://host:port (default port 8883)
//   - tcp, ssl, ws, wss   -> passed through
//
// Returns:
//   - string: Broker URL for pahomqtt.ClientOptions.AddBroker
//   - error: ErrInvalidEndpoint wrapped with the reason
func BrokerURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, endpoint)
	}

	var scheme, port string
	switch u.Scheme {
	case "mqtt", "tcp":
		scheme, port = "tcp", "1883"
	case "mqtts", "ssl":
		scheme, port = "ssl", "8883"
	case "ws", "wss":
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return scheme + "://" + host, nil
}

// buildClientOptions creates paho MQTT options for a single broker URL.
//
// This configures:
//   - Client ID for identification
//   - Clean session (the node holds no broker-side state)
//   - Optional library auto-reconnect with exponential backoff
//   - Connect retry so an initial Open keeps trying in the background
//   - TLS for ssl:// and wss:// brokers
//
// No credentials and no last-will are configured: the broker is an
// unauthenticated local-network service and the node only ever touches
// its two topics.
func buildClientOptions(cfg config.MQTTConfig, brokerURL, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(cfg.Reconnect.Auto)
	opts.SetConnectRetry(true)
	if cfg.Reconnect.InitialDelay > 0 {
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	}
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.Broker.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.Broker.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	// Subscriptions are re-issued by the session layer on every connect.
	opts.SetResumeSubs(false)

	if u, err := url.Parse(brokerURL); err == nil && (u.Scheme == "ssl" || u.Scheme == "wss") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}
