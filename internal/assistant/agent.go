package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tallybot/tally-platform/internal/processor"
	"github.com/tallybot/tally-platform/pkg/config"
	"github.com/tallybot/tally-platform/pkg/mqtt"
	"github.com/tallybot/tally-platform/pkg/redis"
)

// InboundPayload is the message body published by channel frontends. A
// payload that is not valid JSON is treated as the raw text itself, so thin
// SMS gateways can publish plain strings.
type InboundPayload struct {
	Text string `json:"text"`
}

// OutboundPayload is the reply body published back to the channel frontend
type OutboundPayload struct {
	Text         string `json:"text"`
	NumberedList bool   `json:"numbered_list,omitempty"`
}

// Agent is the assistant agent: it receives user messages over MQTT, runs
// them through the turn processor and publishes the reply
type Agent struct {
	mqtt      mqtt.Client
	redis     redis.Client
	processor *processor.Processor
	cfg       *config.Config
	logger    *slog.Logger
}

// NewAgent creates an assistant agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, proc *processor.Processor, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:      mqttClient,
		redis:     redisClient,
		processor: proc,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start connects the agent and begins processing inbound messages
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting assistant agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	for _, topic := range a.cfg.InboundTopics {
		if err := a.mqtt.Subscribe(topic, 1, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			continue
		}
	}

	a.logger.Info("Assistant agent started and ready to receive messages",
		"subscribed_topics", strings.Join(a.cfg.InboundTopics, ", "))

	<-ctx.Done()
	a.logger.Info("Assistant agent stopping")

	return nil
}

// Stop gracefully stops the assistant agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping assistant agent")

	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Assistant agent stopped")
	return nil
}

// handleMessage processes one inbound MQTT message and publishes the reply
func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	channel, handle, err := mqtt.ParseInboundTopic(topic)
	if err != nil {
		a.logger.Error("Failed to parse inbound topic", "topic", topic, "error", err)
		return
	}

	text := parseInboundPayload(payload)
	if text == "" {
		a.logger.Warn("Empty inbound message ignored", "channel", channel, "handle", handle)
		return
	}

	reply := a.processor.Process(context.Background(), processor.Inbound{
		Channel: channel,
		Handle:  handle,
		Text:    text,
	})

	if err := a.publishReply(channel, handle, reply); err != nil {
		a.logger.Error("Failed to publish reply",
			"channel", channel,
			"handle", handle,
			"error", err)
		return
	}

	a.logger.Info("Message processed",
		"channel", channel,
		"handle", handle)
}

// publishReply publishes the reply to the matching outbound topic
func (a *Agent) publishReply(channel, handle string, reply processor.Reply) error {
	topic := mqtt.OutboundTopic(channel, handle)

	payload, err := json.Marshal(OutboundPayload{
		Text:         reply.Text,
		NumberedList: reply.NumberedList,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	if err := a.mqtt.Publish(topic, 1, false, payload); err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}

	a.logger.Debug("Published reply", "topic", topic)
	return nil
}

// parseInboundPayload extracts the message text from a payload, accepting
// both the JSON envelope and bare text
func parseInboundPayload(payload []byte) string {
	var body InboundPayload
	if err := json.Unmarshal(payload, &body); err == nil && body.Text != "" {
		return strings.TrimSpace(body.Text)
	}
	return strings.TrimSpace(string(payload))
}
