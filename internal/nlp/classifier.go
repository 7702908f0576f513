package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tallybot/tally-platform/pkg/llm"
)

// ErrClassification covers every way the external NL call can fail:
// transport error, timeout, non-JSON output. Callers treat them all the same.
var ErrClassification = errors.New("classification failed")

// Intents the classifier is allowed to return. "unknown" is the catch-all.
var KnownIntents = []string{
	"food_log",
	"water_log",
	"gym_workout",
	"sleep_log",
	"todo_add",
	"todo_complete",
	"todo_list",
	"note_add",
	"query_summary",
	"forget_pattern",
	"help",
	"unknown",
}

// Classification is the classifier's verdict on a message
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classifier resolves a raw message into an intent and extracts structured
// entities for it. Implementations are expected to be opaque: the core only
// sees the result or ErrClassification.
type Classifier interface {
	Classify(ctx context.Context, text, userContext string) (*Classification, error)
	Extract(ctx context.Context, text, intent string) (map[string]interface{}, error)
}

// llmClassifier implements Classifier over the Ollama-style LLM client
type llmClassifier struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

// NewLLMClassifier creates a classifier backed by the given LLM
func NewLLMClassifier(client llm.Client, model string, logger *slog.Logger) Classifier {
	return &llmClassifier{client: client, model: model, logger: logger}
}

func (c *llmClassifier) Classify(ctx context.Context, text, userContext string) (*Classification, error) {
	prompt := buildClassifyPrompt(text, userContext)

	resp, err := c.client.Generate(ctx, llm.DefaultGenerateRequest(c.model, prompt))
	if err != nil {
		c.logger.Warn("Classifier LLM call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	result, err := llm.ParseJSONResponse[Classification](resp)
	if err != nil {
		c.logger.Warn("Failed to parse classifier output", "response", resp.Response, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	if !isKnownIntent(result.Intent) {
		c.logger.Debug("Classifier returned unlisted intent, treating as unknown", "intent", result.Intent)
		result.Intent = "unknown"
	}
	result.Confidence = clampConfidence(result.Confidence)

	return result, nil
}

func (c *llmClassifier) Extract(ctx context.Context, text, intent string) (map[string]interface{}, error) {
	prompt := buildExtractPrompt(text, intent)

	resp, err := c.client.Generate(ctx, llm.DefaultGenerateRequest(c.model, prompt))
	if err != nil {
		c.logger.Warn("Extractor LLM call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	entities, err := llm.ParseJSONResponse[map[string]interface{}](resp)
	if err != nil {
		c.logger.Warn("Failed to parse extractor output", "response", resp.Response, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	return *entities, nil
}

func buildClassifyPrompt(text, userContext string) string {
	var b strings.Builder
	b.WriteString("You classify short personal-logging messages into exactly one intent.\n\n")
	b.WriteString("Allowed intents:\n")
	for _, intent := range KnownIntents {
		fmt.Fprintf(&b, "- %s\n", intent)
	}
	if userContext != "" {
		fmt.Fprintf(&b, "\nUser context:\n%s\n", userContext)
	}
	fmt.Fprintf(&b, "\nMessage: %q\n\n", text)
	b.WriteString(`Respond with JSON only: {"intent": "<intent>", "confidence": <0.0-1.0>}`)
	return b.String()
}

func buildExtractPrompt(text, intent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract structured fields from a %s message.\n\n", intent)

	switch intent {
	case "food_log":
		b.WriteString("Fields: description (string, required), calories (int, optional), protein_g (number, optional).\n")
	case "water_log":
		b.WriteString("Fields: amount_ml (int, required; convert glasses=250ml, bottles=500ml, litres=1000ml).\n")
	case "gym_workout":
		b.WriteString("Fields: activity (string, required), duration_min (int, optional).\n")
	case "sleep_log":
		b.WriteString("Fields: hours (number, required), quality (string, optional).\n")
	case "todo_add":
		b.WriteString("Fields: title (string, required).\n")
	case "todo_complete":
		b.WriteString("Fields: title (string, required; the task the user finished).\n")
	case "note_add":
		b.WriteString("Fields: body (string, required), category (string, optional).\n")
	case "forget_pattern":
		b.WriteString("Fields: term (string, required; the word the user wants forgotten).\n")
	default:
		b.WriteString("Fields: none expected; return an empty object if nothing applies.\n")
	}

	fmt.Fprintf(&b, "\nMessage: %q\n\n", text)
	b.WriteString("Respond with a single flat JSON object containing only the fields present.")
	return b.String()
}

func isKnownIntent(intent string) bool {
	for _, known := range KnownIntents {
		if intent == known {
			return true
		}
	}
	return false
}

// clampConfidence keeps confidence away from absolute certainty in either
// direction, mirroring how downstream thresholds are tuned
func clampConfidence(c float64) float64 {
	if c < 0.1 {
		return 0.1
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}
