package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads. Node payloads are a single byte.
const maxPayloadSize = 1 << 16

// Publish sends a message without waiting for delivery.
//
// The node publishes at QoS 0 (fire and forget), so there is no
// acknowledgment to wait for; the token is watched in the background and
// a late failure is only logged.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "bnt/estado")
//   - payload: The message payload
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - error: ErrNotConnected if there is no live connection, or a validation error
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	client, _ := c.current()
	if client == nil {
		return ErrNotOpened
	}
	if !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, retained, payload)
	go c.watchToken(token, "publish", topic)

	return nil
}
