package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) LookupEnv {
	return func(key string) string { return vars[key] }
}

func TestResolveEmbeddingConfig_Disabled(t *testing.T) {
	cfg, err := ResolveEmbeddingConfig(EmbeddingSettings{}, nil)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled())
	assert.Equal(t, "", cfg.Model())
}

func TestResolveEmbeddingConfig_OllamaDefaults(t *testing.T) {
	cfg, err := ResolveEmbeddingConfig(EmbeddingSettings{Provider: AIProviderOllama}, nil)
	require.NoError(t, err)

	require.True(t, cfg.Enabled())
	require.NotNil(t, cfg.Ollama)
	assert.Nil(t, cfg.OpenAI)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.Model)
	assert.Equal(t, 768, cfg.Ollama.Dimensions)
}

func TestResolveEmbeddingConfig_OllamaHostFromEnv(t *testing.T) {
	cfg, err := ResolveEmbeddingConfig(
		EmbeddingSettings{Provider: "  OLLAMA "},
		envOf(map[string]string{EnvOllamaHost: "http://gpu-box:11434/"}),
	)
	require.NoError(t, err)
	assert.Equal(t, AIProviderOllama, cfg.Kind)
	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.BaseURL)
}

func TestResolveEmbeddingConfig_ExplicitSettingsWin(t *testing.T) {
	cfg, err := ResolveEmbeddingConfig(EmbeddingSettings{
		Provider:   AIProviderOpenAI,
		Model:      "text-embedding-3-large",
		BaseURL:    "https://proxy.example/v1",
		APIKey:     "sk-settings",
		Dimensions: 256,
	}, envOf(map[string]string{EnvOpenAIAPIKey: "sk-env"}))
	require.NoError(t, err)

	require.NotNil(t, cfg.OpenAI)
	assert.Equal(t, "https://proxy.example/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "text-embedding-3-large", cfg.OpenAI.Model)
	assert.Equal(t, "sk-settings", cfg.OpenAI.APIKey)
	assert.Equal(t, 256, cfg.OpenAI.Dimensions)
}

func TestResolveEmbeddingConfig_APIKeyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"specific variable first", map[string]string{EnvEmbedAPIKey: "sk-embed", EnvOpenAIAPIKey: "sk-openai"}, "sk-embed"},
		{"generic variable fallback", map[string]string{EnvOpenAIAPIKey: "sk-openai"}, "sk-openai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ResolveEmbeddingConfig(EmbeddingSettings{Provider: AIProviderOpenAI}, envOf(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.OpenAI.APIKey)
			assert.Equal(t, 1536, cfg.OpenAI.Dimensions)
		})
	}
}

func TestResolveEmbeddingConfig_MissingAPIKey(t *testing.T) {
	_, err := ResolveEmbeddingConfig(EmbeddingSettings{Provider: AIProviderOpenAI}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestResolveEmbeddingConfig_UnknownProvider(t *testing.T) {
	_, err := ResolveEmbeddingConfig(EmbeddingSettings{Provider: "cohere"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestResolveLLMConfig(t *testing.T) {
	cfg, err := ResolveLLMConfig(LLMSettings{Provider: AIProviderOpenAI},
		envOf(map[string]string{EnvLLMAPIKey: "sk-llm"}))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Model())
	assert.Equal(t, "sk-llm", cfg.OpenAI.APIKey)
	assert.Equal(t, 0, cfg.OpenAI.Dimensions)

	cfg, err = ResolveLLMConfig(LLMSettings{Provider: AIProviderOllama, Model: "llama3.2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.Model())
}
