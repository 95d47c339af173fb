package driven

import (
	"context"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// LLMService streams text from a language model.
// This is an optional service - when nil, generation is unavailable but
// context building keeps working.
//
// Implementations may include:
//   - OpenAI (and compatible chat completion endpoints)
//   - Ollama (local models)
type LLMService interface {
	// Stream sends the messages and calls emit for every text increment.
	// It returns when the response is complete, ctx is cancelled, or emit
	// returns an error.
	Stream(ctx context.Context, messages []ChatMessage, opts GenerateOptions, emit domain.EmitFunc) error

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}
