package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client is the interface for LLM interactions
type Client interface {
	// Generate sends a prompt and returns structured JSON response
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Embed returns an embedding vector for the given text
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// Health checks if the LLM service is available
	Health(ctx context.Context) error
}

// GenerateRequest represents a request to the LLM
type GenerateRequest struct {
	Model     string                 `json:"model"`
	Prompt    string                 `json:"prompt"`
	System    string                 `json:"system,omitempty"`     // System prompt (optional)
	Format    string                 `json:"format,omitempty"`     // "json" for structured output
	Stream    bool                   `json:"stream"`               // Always false for now
	Options   map[string]interface{} `json:"options,omitempty"`    // Model-specific options
	KeepAlive string                 `json:"keep_alive,omitempty"` // Keep model loaded
}

// GenerateResponse represents the LLM's response
type GenerateResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Response      string    `json:"response"` // Raw text response
	Done          bool      `json:"done"`
	TotalDuration int64     `json:"total_duration"` // nanoseconds
	EvalCount     int       `json:"eval_count"`
}

// embedRequest is the Ollama embeddings API request body
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama embeddings API response body
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ollamaClient implements Client for the Ollama API
type ollamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama LLM client
func NewOllamaClient(baseURL string, timeout time.Duration, logger *slog.Logger) Client {
	return &ollamaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Generate sends a prompt to Ollama and returns the response
func (c *ollamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	// Force non-streaming
	req.Stream = false

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug("LLM request",
		"model", req.Model,
		"prompt_length", len(req.Prompt),
		"format", req.Format)

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/api/generate",
		bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LLM returned status %d: %s", resp.StatusCode, string(body))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	duration := time.Since(startTime)

	c.logger.Debug("LLM response received",
		"model", req.Model,
		"duration_ms", duration.Milliseconds(),
		"eval_count", genResp.EvalCount,
		"response_length", len(genResp.Response))

	return &genResp, nil
}

// Embed returns an embedding vector for the given text
func (c *ollamaClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	reqBody, err := json.Marshal(embedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/api/embeddings",
		bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("embeddings API returned empty vector")
	}

	return embResp.Embedding, nil
}

// Health checks if Ollama is available
func (c *ollamaClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// DefaultGenerateRequest creates a request with sensible defaults
func DefaultGenerateRequest(model, prompt string) GenerateRequest {
	return GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
		Options: map[string]interface{}{
			"temperature": 0.1, // Low for deterministic output
			"top_p":       0.9,
		},
		KeepAlive: "5m", // Keep model loaded between turns
	}
}

// ParseJSONResponse parses the LLM's JSON response into a target type
func ParseJSONResponse[T any](resp *GenerateResponse) (*T, error) {
	var result T

	if err := json.Unmarshal([]byte(resp.Response), &result); err != nil {
		return nil, fmt.Errorf("failed to parse LLM JSON: %w (response: %s)",
			err, resp.Response)
	}

	return &result, nil
}
