package node

import (
	"context"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
	"github.com/nerrad567/ionode/internal/infrastructure/mqtt"
	"github.com/nerrad567/ionode/internal/session"
)

// Transport is the messaging collaborator as the node sees it: the
// session's view plus lifecycle callbacks.
type Transport interface {
	session.Transport

	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
	HealthCheck(ctx context.Context) error
	Close() error
}

// TransportFactory builds a transport for the given MQTT client id.
type TransportFactory func(clientID string) Transport

// mqttTransport adapts mqtt.Client to the session's handler signature.
type mqttTransport struct {
	*mqtt.Client
}

// Subscribe implements session.Transport.
func (t mqttTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return t.Client.Subscribe(topic, qos, func(topic string, payload []byte) error {
		handler(topic, payload)
		return nil
	})
}

// MQTTTransportFactory returns a factory producing paho-backed transports.
func MQTTTransportFactory(cfg config.MQTTConfig, logger mqtt.Logger) TransportFactory {
	return func(clientID string) Transport {
		c := mqtt.New(cfg, clientID)
		if logger != nil {
			c.SetLogger(logger)
		}
		return mqttTransport{Client: c}
	}
}
