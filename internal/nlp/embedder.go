package nlp

import (
	"context"

	"github.com/tallybot/tally-platform/pkg/llm"
)

// Embedder binds an LLM client and embedding model into the single-text
// embedding interface the pattern matcher takes
type Embedder struct {
	client llm.Client
	model  string
}

// NewEmbedder creates an embedder for the given model
func NewEmbedder(client llm.Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed produces the embedding vector for a piece of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, text)
}
