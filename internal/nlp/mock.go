package nlp

import "context"

// MockClassifier is a classifier test double with call counters, used to
// assert that shortcut paths never reach the external NL service
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, text, userContext string) (*Classification, error)
	ExtractFunc  func(ctx context.Context, text, intent string) (map[string]interface{}, error)

	ClassifyCalls int
	ExtractCalls  int
}

func (m *MockClassifier) Classify(ctx context.Context, text, userContext string) (*Classification, error) {
	m.ClassifyCalls++
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text, userContext)
	}
	return &Classification{Intent: "unknown", Confidence: 0.5}, nil
}

func (m *MockClassifier) Extract(ctx context.Context, text, intent string) (map[string]interface{}, error) {
	m.ExtractCalls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, text, intent)
	}
	return map[string]interface{}{}, nil
}

// NewMockClassifier creates a mock with default behavior
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}
