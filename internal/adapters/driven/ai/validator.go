package ai

import (
	"context"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator validates AI provider settings by pinging the provider.
type ConfigValidator struct {
	env domain.LookupEnv
}

// NewConfigValidator creates a validator that resolves API keys from env.
func NewConfigValidator(env domain.LookupEnv) *ConfigValidator {
	return &ConfigValidator{env: env}
}

// ValidateEmbedding resolves settings and pings the embedding provider.
func (v *ConfigValidator) ValidateEmbedding(settings domain.EmbeddingSettings) error {
	cfg, err := domain.ResolveEmbeddingConfig(settings, v.env)
	if err != nil {
		return err
	}
	svc, err := CreateAndValidateEmbeddingService(context.Background(), cfg)
	if svc != nil {
		svc.Close()
	}
	return err
}

// ValidateLLM resolves settings and pings the LLM provider.
func (v *ConfigValidator) ValidateLLM(settings domain.LLMSettings) error {
	cfg, err := domain.ResolveLLMConfig(settings, v.env)
	if err != nil {
		return err
	}
	svc, err := CreateAndValidateLLMService(context.Background(), cfg)
	if svc != nil {
		svc.Close()
	}
	return err
}
