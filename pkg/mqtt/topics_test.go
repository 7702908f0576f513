package mqtt

import "testing"

func TestTopicRoundTrip(t *testing.T) {
	topic := InboundTopic("sms", "+358401234567")
	if topic != "assistant/inbound/sms/+358401234567" {
		t.Errorf("InboundTopic() = %q", topic)
	}

	channel, handle, err := ParseInboundTopic(topic)
	if err != nil {
		t.Fatalf("ParseInboundTopic() error: %v", err)
	}
	if channel != "sms" || handle != "+358401234567" {
		t.Errorf("ParseInboundTopic() = %q/%q, want sms/+358401234567", channel, handle)
	}
}

func TestParseInboundTopicRejectsMalformed(t *testing.T) {
	tests := []string{
		"assistant/outbound/sms/+358401234567",
		"assistant/inbound/sms",
		"assistant/inbound//handle",
		"assistant/inbound/sms/",
		"automation/raw/motion/study",
		"",
	}

	for _, topic := range tests {
		if _, _, err := ParseInboundTopic(topic); err == nil {
			t.Errorf("ParseInboundTopic(%q) accepted a malformed topic", topic)
		}
	}
}
