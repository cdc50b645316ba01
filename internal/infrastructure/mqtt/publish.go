package mqtt

import (
	"context"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic and waits for the
// broker acknowledgement.
//
// It is PublishContext with a background context.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return c.PublishContext(context.Background(), topic, payload, qos, retained)
}

// PublishContext sends a message and waits for the acknowledgement until
// it arrives, ctx is done, or the configured publish timeout elapses.
//
// Parameters:
//   - ctx: Cancels the wait (the message may still be delivered)
//   - topic: The topic to publish to (e.g., "power/cigre_mv/bus_voltages")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// A zero mqtt.publish_timeout waits without limit. The wait also ends
// when the connection drops, which paho reports through the token.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	err := client.PublishContext(ctx, cfg.Simulation.Topic, payload, 1, false)
func (c *Client) PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)

	var timeout <-chan time.Time
	if c.cfg.PublishTimeout > 0 {
		timer := time.NewTimer(c.cfg.PublishTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timeout:
		return fmt.Errorf("%w: %w after %v", ErrPublishFailed, ErrTimeout, c.cfg.PublishTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Subscribe registers a handler for messages on the specified topic.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "power/+/bus_voltages" matches any grid
//   - # (multi-level): "power/cigre_mv/#" matches all simulator topics
//
// Subscriptions are not restored after a lost connection.
//
// Parameters:
//   - topic: The topic pattern to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(statusPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, statusPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}
