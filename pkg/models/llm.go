package models

import (
	"context"

	"github.com/smarthealth/medquery/config"

	"github.com/tmc/langchaingo/llms"
)

// LLM is the chat completion capability behind the generation orchestrator.
type LLM interface {
	// Call runs a chat completion against the prompt.
	Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error)
	// GetTokenCount returns the number of tokens in the given text
	GetTokenCount(text string) (int, error)
	// Init initializes the LLM
	Init(ctx context.Context, cfg *config.Config) error
}

// EmbeddingsClient converts text into fixed-width dense vectors. Identical
// text yields interchangeable vectors within one model version; vectors from
// different model versions must not be mixed in the same index.
type EmbeddingsClient interface {
	// EmbedTexts embeds the given texts
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Init initializes the Client
	Init(ctx context.Context, cfg *config.Config) error
}

// TokenCounter is the subset of LLM the context assembler needs.
type TokenCounter interface {
	GetTokenCount(text string) (int, error)
}
