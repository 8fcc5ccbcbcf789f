package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified filter.
//
// The request is sent immediately and its acknowledgment is awaited in the
// background. Subscriptions belong to the current paho client only: after
// a reconnect or a new Open the caller must subscribe again.
//
// Parameters:
//   - filter: The topic filter to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil if the request was sent, or wrapped error describing the failure
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	client, _ := c.current()
	if client == nil {
		return ErrNotOpened
	}
	if !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := client.Subscribe(filter, qos, c.wrapHandler(handler))
	go c.watchToken(token, "subscribe", filter)

	return nil
}
