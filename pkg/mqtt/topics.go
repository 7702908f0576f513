package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants for the assistant message flow.
//
// Channel gateways (SMS bridge, web chat) publish raw user messages to
// assistant/inbound/{channel}/{handle}. Agents publish replies and scheduled
// digests to assistant/outbound/{channel}/{handle}; the gateway owns
// channel-specific formatting and delivery.
const (
	TopicInboundAll  = "assistant/inbound/+/+"
	TopicOutboundAll = "assistant/outbound/+/+"
)

// InboundTopic constructs the inbound topic for a channel and user handle
func InboundTopic(channel, handle string) string {
	return fmt.Sprintf("assistant/inbound/%s/%s", channel, handle)
}

// OutboundTopic constructs the outbound topic for a channel and user handle
func OutboundTopic(channel, handle string) string {
	return fmt.Sprintf("assistant/outbound/%s/%s", channel, handle)
}

// ParseInboundTopic extracts the channel and user handle from an inbound topic.
// Pattern: assistant/inbound/{channel}/{handle}
func ParseInboundTopic(topic string) (channel, handle string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "assistant" || parts[1] != "inbound" {
		return "", "", fmt.Errorf("invalid inbound topic: %s", topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("inbound topic missing channel or handle: %s", topic)
	}
	return parts[2], parts[3], nil
}
