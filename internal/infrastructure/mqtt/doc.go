// Package mqtt is the node's messaging transport, built on
// github.com/eclipse/paho.mqtt.golang.
//
// The package exposes exactly what the session layer needs:
//
//   - Open(endpoint) starts an asynchronous connection to a broker URI
//     such as "mqtt://192.168.0.158:1883"
//   - Subscribe and Publish send requests without blocking on acknowledgments
//   - OnConnect, OnDisconnect and OnReconnecting callbacks report the
//     connection lifecycle
//
// Connection state lives in the session layer; this package never
// restores subscriptions on its own.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, deviceID)
//	client.SetOnConnect(func() { ... })
//	if err := client.Open(cfg.MQTT.Broker.URI); err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
