package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API or any compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider. Empty disables embeddings.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's known vector size.
	Dimensions int
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider. Empty disables generation.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// RetrievalSettings holds ranking and context-sizing configuration.
type RetrievalSettings struct {
	// Weights blends vector and keyword signals.
	Weights Weights

	// TokenBudget is the default context budget.
	TokenBudget int

	// AvgChunkTokens estimates the size of one retrieved chunk.
	AvgChunkTokens int

	// MinK and MaxK bound dynamic top-k.
	MinK int
	MaxK int

	// MaxPerEntity caps how many records of one entity reach the context.
	MaxPerEntity int

	// QueryTimeoutMS bounds the query embedding call.
	QueryTimeoutMS int
}

// ChunkerSettings holds chunking configuration.
type ChunkerSettings struct {
	// MaxSize is the maximum chunk size in characters.
	MaxSize int

	// Overlap is the number of characters carried into the next chunk.
	Overlap int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Retrieval RetrievalSettings
	Chunker   ChunkerSettings

	// DataDir is where the record database lives. Empty means ~/.loom/data.
	DataDir string
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; retrieval then runs keyword-only.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Retrieval: RetrievalSettings{
			Weights:        DefaultWeights(),
			TokenBudget:    4000,
			AvgChunkTokens: 500,
			MinK:           1,
			MaxK:           10,
			MaxPerEntity:   3,
			QueryTimeoutMS: 3000,
		},
		Chunker: ChunkerSettings{
			MaxSize: 1500,
			Overlap: 200,
		},
	}
}

// AllProviders returns every supported provider.
func AllProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "qwen2.5",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// DefaultBaseURLs returns the default endpoint of each provider.
func DefaultBaseURLs() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "http://localhost:11434",
		AIProviderOpenAI: "https://api.openai.com/v1",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		"bge-m3":            1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
