// Package ai builds embedding and LLM adapters from resolved provider configuration.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/loom/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/loom/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/loom/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/loom/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService // nil means keyword-only ranking.
	LLMService       driven.LLMService       // nil means generation is unavailable.
	Warnings         []string                // Non-fatal issues that caused fallback.
	FellBack         bool                    // True if a configured provider could not be used.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init resolves both providers from settings and the environment, creates
// the adapters and pings them. A provider that cannot be resolved, created
// or reached is left nil and recorded in Warnings; Init itself never fails.
func Init(ctx context.Context, settings domain.AppSettings, env domain.LookupEnv) *InitResult {
	result := &InitResult{}

	embedCfg, err := domain.ResolveEmbeddingConfig(settings.Embedding, env)
	if err == nil {
		result.EmbeddingService, err = CreateAndValidateEmbeddingService(ctx, embedCfg)
	}
	if err != nil {
		result.warn(fmt.Sprintf("embedding disabled, ranking is keyword-only: %v", err))
	}

	llmCfg, err := domain.ResolveLLMConfig(settings.LLM, env)
	if err == nil {
		result.LLMService, err = CreateAndValidateLLMService(ctx, llmCfg)
	}
	if err != nil {
		result.warn(fmt.Sprintf("generation disabled: %v", err))
	}

	return result
}

func (r *InitResult) warn(msg string) {
	logger.Warn("%s", msg)
	r.Warnings = append(r.Warnings, msg)
	r.FellBack = true
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// A disabled config yields nil, nil.
func CreateAndValidateEmbeddingService(ctx context.Context, cfg domain.ProviderConfig) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'loom settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// A disabled config yields nil, nil.
func CreateAndValidateLLMService(ctx context.Context, cfg domain.ProviderConfig) (driven.LLMService, error) {
	svc, err := CreateLLMService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'loom settings llm' to fix",
			domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the embedding adapter selected by cfg.Kind.
// Returns nil if the provider is disabled.
func CreateEmbeddingService(cfg domain.ProviderConfig) (driven.EmbeddingService, error) {
	switch cfg.Kind {
	case "":
		return nil, nil

	case domain.AIProviderOllama:
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("%w: missing ollama config", domain.ErrInvalidInput)
		}
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.Ollama.BaseURL,
			Model:      cfg.Ollama.Model,
			Dimensions: cfg.Ollama.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: missing openai config", domain.ErrInvalidInput)
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, cfg.Kind)
	}
}

// CreateLLMService creates the LLM adapter selected by cfg.Kind.
// Returns nil if the provider is disabled.
func CreateLLMService(cfg domain.ProviderConfig) (driven.LLMService, error) {
	switch cfg.Kind {
	case "":
		return nil, nil

	case domain.AIProviderOllama:
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("%w: missing ollama config", domain.ErrInvalidInput)
		}
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
		}), nil

	case domain.AIProviderOpenAI:
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: missing openai config", domain.ErrInvalidInput)
		}
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, cfg.Kind)
	}
}
