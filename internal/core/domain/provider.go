package domain

import (
	"fmt"
	"strings"
)

// Environment variables consulted when resolving provider configuration.
//
//nolint:gosec // G101: variable names, not credentials.
const (
	EnvEmbedAPIKey  = "LOOM_EMBED_API_KEY"
	EnvLLMAPIKey    = "LOOM_LLM_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
)

// ProviderConfig is the effective configuration of one AI provider.
// Exactly one of the per-provider fields is set when Kind is non-empty.
type ProviderConfig struct {
	// Kind selects the provider. Empty means disabled.
	Kind AIProvider

	Ollama *OllamaConfig
	OpenAI *OpenAIConfig
}

// OllamaConfig configures an Ollama endpoint.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
}

// Enabled returns true if a provider is selected.
func (c ProviderConfig) Enabled() bool {
	return c.Kind != ""
}

// Model returns the selected model name.
func (c ProviderConfig) Model() string {
	switch c.Kind {
	case AIProviderOllama:
		return c.Ollama.Model
	case AIProviderOpenAI:
		return c.OpenAI.Model
	default:
		return ""
	}
}

// LookupEnv reads an environment variable. os.Getenv satisfies it.
type LookupEnv func(key string) string

// ResolveEmbeddingConfig merges embedding settings, defaults and the
// environment into the effective provider configuration. It performs no I/O.
func ResolveEmbeddingConfig(s EmbeddingSettings, env LookupEnv) (ProviderConfig, error) {
	cfg, err := resolve(s.Provider, s.Model, s.BaseURL, s.APIKey,
		DefaultEmbeddingModels(), env, EnvEmbedAPIKey)
	if err != nil || !cfg.Enabled() {
		return cfg, err
	}

	dims := s.Dimensions
	if dims == 0 {
		dims = EmbeddingDimensions()[cfg.Model()]
	}
	switch cfg.Kind {
	case AIProviderOllama:
		cfg.Ollama.Dimensions = dims
	case AIProviderOpenAI:
		cfg.OpenAI.Dimensions = dims
	}
	return cfg, nil
}

// ResolveLLMConfig merges LLM settings, defaults and the environment into
// the effective provider configuration. It performs no I/O.
func ResolveLLMConfig(s LLMSettings, env LookupEnv) (ProviderConfig, error) {
	return resolve(s.Provider, s.Model, s.BaseURL, s.APIKey,
		DefaultLLMModels(), env, EnvLLMAPIKey)
}

func resolve(
	provider AIProvider, model, baseURL, apiKey string,
	models map[AIProvider]string, env LookupEnv, keyVar string,
) (ProviderConfig, error) {
	if env == nil {
		env = func(string) string { return "" }
	}

	provider = AIProvider(strings.ToLower(strings.TrimSpace(string(provider))))
	if provider == "" {
		return ProviderConfig{}, nil
	}
	if !provider.IsValid() {
		return ProviderConfig{}, fmt.Errorf("%w: provider %q", ErrUnsupportedType, provider)
	}

	if model == "" {
		model = models[provider]
	}
	if baseURL == "" && provider == AIProviderOllama {
		baseURL = env(EnvOllamaHost)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURLs()[provider]
	}
	baseURL = strings.TrimRight(baseURL, "/")

	switch provider {
	case AIProviderOllama:
		return ProviderConfig{
			Kind:   provider,
			Ollama: &OllamaConfig{BaseURL: baseURL, Model: model},
		}, nil
	default:
		if apiKey == "" {
			apiKey = env(keyVar)
		}
		if apiKey == "" {
			apiKey = env(EnvOpenAIAPIKey)
		}
		if apiKey == "" {
			return ProviderConfig{}, fmt.Errorf("%w: %s requires an API key", ErrInvalidInput, provider)
		}
		return ProviderConfig{
			Kind:   provider,
			OpenAI: &OpenAIConfig{BaseURL: baseURL, Model: model, APIKey: apiKey},
		}, nil
	}
}
