package llm

import (
	"context"
	"time"
)

// MockClient is a mock LLM client for testing
type MockClient struct {
	GenerateFunc func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	EmbedFunc    func(ctx context.Context, model, text string) ([]float32, error)
	HealthFunc   func(ctx context.Context) error

	GenerateCalls int
	EmbedCalls    int
}

func (m *MockClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.GenerateCalls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	// Default mock response
	return &GenerateResponse{
		Model:     req.Model,
		Response:  `{"result": "mock"}`,
		Done:      true,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, model, text)
	}
	return make([]float32, 128), nil
}

func (m *MockClient) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// NewMockClient creates a mock client with default behavior
func NewMockClient() *MockClient {
	return &MockClient{}
}
