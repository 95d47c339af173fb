package driven

import "github.com/custodia-labs/loom/internal/core/domain"

// AIConfigValidator checks provider settings by contacting the provider.
type AIConfigValidator interface {
	// ValidateEmbedding resolves the settings and pings the embedding provider.
	// Unconfigured settings are valid.
	ValidateEmbedding(settings domain.EmbeddingSettings) error

	// ValidateLLM resolves the settings and pings the LLM provider.
	// Unconfigured settings are valid.
	ValidateLLM(settings domain.LLMSettings) error
}
