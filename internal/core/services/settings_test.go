package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/loom/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/loom/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults, *settings)
	assert.Equal(t, defaults, service.GetDefaults())
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"embedding.provider":         "ollama",
		"embedding.model":            "bge-m3",
		"embedding.dimensions":       int64(1024),
		"llm.provider":               "openai",
		"retrieval.vector_weight":    0.5,
		"retrieval.keyword_weight":   int64(1),
		"retrieval.token_budget":     int64(6000),
		"retrieval.max_k":            int64(20),
		"retrieval.query_timeout_ms": int64(1500),
		"chunker.max_size":           int64(800),
		"storage.data_dir":           "/tmp/loom",
	})
	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "bge-m3", settings.Embedding.Model)
	assert.Equal(t, 1024, settings.Embedding.Dimensions)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.InDelta(t, 0.5, settings.Retrieval.Weights.Vector, 1e-9)
	assert.InDelta(t, 1.0, settings.Retrieval.Weights.Keyword, 1e-9)
	assert.Equal(t, 6000, settings.Retrieval.TokenBudget)
	assert.Equal(t, 20, settings.Retrieval.MaxK)
	assert.Equal(t, 1500, settings.Retrieval.QueryTimeoutMS)
	assert.Equal(t, 800, settings.Chunker.MaxSize)
	assert.Equal(t, 200, settings.Chunker.Overlap)
	assert.Equal(t, "/tmp/loom", settings.DataDir)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"embedding.provider":      "anthropic",
		"retrieval.vector_weight": "heavy",
		"retrieval.max_k":         int64(-3),
	})
	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Empty(t, settings.Embedding.Provider)
	assert.InDelta(t, defaults.Retrieval.Weights.Vector, settings.Retrieval.Weights.Vector, 1e-9)
	assert.Equal(t, defaults.Retrieval.MaxK, settings.Retrieval.MaxK)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	want := domain.DefaultAppSettings()
	want.Embedding = domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small",
		BaseURL: "https://api.openai.com/v1", APIKey: "sk-test", Dimensions: 1536,
	}
	want.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "qwen2.5", BaseURL: "http://localhost:11434"}
	want.Retrieval.Weights = domain.Weights{Vector: 0.6, Keyword: 0.4}
	want.Retrieval.MaxPerEntity = 2
	want.DataDir = "/data"

	require.NoError(t, service.Save(&want))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestSettingsService_SaveSkipsEmptySecrets(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	settings := domain.DefaultAppSettings()
	require.NoError(t, service.Save(&settings))

	_, ok := store.Get("embedding.api_key")
	assert.False(t, ok)
	_, ok = store.Get("llm.api_key")
	assert.False(t, ok)
}

func TestSettingsService_SetEmbeddingProvider_Defaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "", "", ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Equal(t, 768, settings.Embedding.Dimensions)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NoError(t, service.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o", "https://proxy.example.com/v1", "sk-x"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "gpt-4o",
		BaseURL:  "https://proxy.example.com/v1",
		APIKey:   "sk-x",
	}, settings.LLM)
}

func TestSettingsService_InvalidProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	assert.ErrorIs(t, service.SetEmbeddingProvider("cohere", "", "", ""), domain.ErrUnsupportedType)
	assert.ErrorIs(t, service.SetLLMProvider("", "", "", ""), domain.ErrUnsupportedType)
}
