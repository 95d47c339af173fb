package services

import (
	"fmt"
	"strconv"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyVectorWeight    = "retrieval.vector_weight"
	keyKeywordWeight   = "retrieval.keyword_weight"
	keyTokenBudget     = "retrieval.token_budget"
	keyAvgChunkTokens  = "retrieval.avg_chunk_tokens"
	keyMinK            = "retrieval.min_k"
	keyMaxK            = "retrieval.max_k"
	keyMaxPerEntity    = "retrieval.max_per_entity"
	keyQueryTimeoutMS  = "retrieval.query_timeout_ms"
	keyChunkerMaxSize  = "chunker.max_size"
	keyChunkerOverlap  = "chunker.overlap"
	keyStorageDataDir  = "storage.data_dir"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
	}
}

// Get retrieves current application settings.
// Missing or invalid values fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider),
			Model:      s.configStore.GetString(keyEmbedModel),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDimensions, 0),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider),
			Model:    s.configStore.GetString(keyLLMModel),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Retrieval: domain.RetrievalSettings{
			Weights: domain.Weights{
				Vector:  s.getFloat(keyVectorWeight, defaults.Retrieval.Weights.Vector),
				Keyword: s.getFloat(keyKeywordWeight, defaults.Retrieval.Weights.Keyword),
			},
			TokenBudget:    s.getInt(keyTokenBudget, defaults.Retrieval.TokenBudget),
			AvgChunkTokens: s.getInt(keyAvgChunkTokens, defaults.Retrieval.AvgChunkTokens),
			MinK:           s.getInt(keyMinK, defaults.Retrieval.MinK),
			MaxK:           s.getInt(keyMaxK, defaults.Retrieval.MaxK),
			MaxPerEntity:   s.getInt(keyMaxPerEntity, defaults.Retrieval.MaxPerEntity),
			QueryTimeoutMS: s.getInt(keyQueryTimeoutMS, defaults.Retrieval.QueryTimeoutMS),
		},
		Chunker: domain.ChunkerSettings{
			MaxSize: s.getInt(keyChunkerMaxSize, defaults.Chunker.MaxSize),
			Overlap: s.getInt(keyChunkerOverlap, defaults.Chunker.Overlap),
		},
		DataDir: s.configStore.GetString(keyStorageDataDir),
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
		skip  bool
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String(), false},
		{keyEmbedModel, settings.Embedding.Model, false},
		{keyEmbedBaseURL, settings.Embedding.BaseURL, false},
		{keyEmbedAPIKey, settings.Embedding.APIKey, settings.Embedding.APIKey == ""},
		{keyEmbedDimensions, settings.Embedding.Dimensions, settings.Embedding.Dimensions == 0},
		{keyLLMProvider, settings.LLM.Provider.String(), false},
		{keyLLMModel, settings.LLM.Model, false},
		{keyLLMBaseURL, settings.LLM.BaseURL, false},
		{keyLLMAPIKey, settings.LLM.APIKey, settings.LLM.APIKey == ""},
		{keyVectorWeight, settings.Retrieval.Weights.Vector, false},
		{keyKeywordWeight, settings.Retrieval.Weights.Keyword, false},
		{keyTokenBudget, settings.Retrieval.TokenBudget, false},
		{keyAvgChunkTokens, settings.Retrieval.AvgChunkTokens, false},
		{keyMinK, settings.Retrieval.MinK, false},
		{keyMaxK, settings.Retrieval.MaxK, false},
		{keyMaxPerEntity, settings.Retrieval.MaxPerEntity, false},
		{keyQueryTimeoutMS, settings.Retrieval.QueryTimeoutMS, false},
		{keyChunkerMaxSize, settings.Chunker.MaxSize, false},
		{keyChunkerOverlap, settings.Chunker.Overlap, false},
		{keyStorageDataDir, settings.DataDir, settings.DataDir == ""},
	}

	for _, v := range values {
		if v.skip {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
// Empty model and baseURL select the provider defaults.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, baseURL, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider %q: %w", provider, domain.ErrUnsupportedType)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	if baseURL == "" {
		baseURL = domain.DefaultBaseURLs()[provider]
	}

	settings.Embedding = domain.EmbeddingSettings{
		Provider:   provider,
		Model:      model,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Dimensions: domain.EmbeddingDimensions()[model],
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
// Empty model and baseURL select the provider defaults.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, baseURL, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider %q: %w", provider, domain.ErrUnsupportedType)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}
	if baseURL == "" {
		baseURL = domain.DefaultBaseURLs()[provider]
	}

	settings.LLM = domain.LLMSettings{
		Provider: provider,
		Model:    model,
		BaseURL:  baseURL,
		APIKey:   apiKey,
	}

	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	raw, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return ""
	}
	return provider
}
