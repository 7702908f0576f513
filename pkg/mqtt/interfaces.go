package mqtt

import "context"

// Client is the broker connection the agents publish and subscribe through.
// The assistant agent subscribes to inbound user messages and publishes
// replies; the digest agent only publishes.
type Client interface {
	// Connect establishes the broker connection, honoring ctx cancellation
	Connect(ctx context.Context) error

	// Disconnect closes the broker connection
	Disconnect()

	// Subscribe registers a handler for a topic filter at the given QoS
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Publish sends a payload to a topic at the given QoS
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// IsConnected reports the current connection state
	IsConnected() bool
}

// MessageHandler receives messages delivered on a subscription
type MessageHandler func(Message)

// Message is one delivered inbound message
type Message interface {
	// Topic returns the concrete topic the message arrived on
	Topic() string

	// Payload returns the raw message body
	Payload() []byte
}
