package driven

// ConfigStore persists flat "section.name" settings such as
// "retrieval.token_budget" or "embedding.provider".
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	// GetString returns "" for a missing or non-string value.
	GetString(key string) string

	// GetInt returns 0 for a missing or non-numeric value.
	GetInt(key string) int

	// Set stores a value and persists it.
	Set(key string, value any) error

	// Save writes the current values to storage.
	Save() error

	// Load replaces the in-memory values with the stored ones.
	Load() error

	// Path returns where the configuration lives.
	Path() string
}
