package driving

import (
	"context"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// GenerationService produces context-grounded text.
type GenerationService interface {
	// Generate builds context for the request and starts streaming.
	// It returns domain.ErrLLMUnavailable when no LLM is configured.
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationStream, error)
}
