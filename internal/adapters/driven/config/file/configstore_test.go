package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, ConfigFile), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestConfigStore_SetWritesTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("retrieval.token_budget", 4000))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[embedding]")
	assert.Contains(t, string(raw), "[retrieval]")
	assert.Contains(t, string(raw), "ollama")
	assert.NotContains(t, string(raw), "embedding.provider")
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	first, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, first.Set("embedding.provider", "openai"))
	require.NoError(t, first.Set("retrieval.token_budget", 6000))
	require.NoError(t, first.Set("retrieval.vector_weight", 0.6))
	require.NoError(t, first.Set("debug", true))
	require.NoError(t, first.Set("watch.patterns", []string{"*.md", "*.txt"}))

	second, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "openai", second.GetString("embedding.provider"))
	assert.Equal(t, 6000, second.GetInt("retrieval.token_budget"))
	val, ok := second.Get("retrieval.vector_weight")
	require.True(t, ok)
	assert.InDelta(t, 0.6, val, 1e-9)
	assert.Equal(t, []string{
		"debug", "embedding.provider", "retrieval.token_budget", "retrieval.vector_weight", "watch.patterns",
	}, second.Keys())
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[embedding]
provider = "ollama"
model = "bge-m3"

[retrieval]
max_k = 12
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFile), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, "bge-m3", store.GetString("embedding.model"))
	assert.Equal(t, 12, store.GetInt("retrieval.max_k"))
}

func TestConfigStore_TypeMismatchReturnsZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", 42))

	assert.Empty(t, store.GetString("k"))
	assert.Zero(t, store.GetInt("missing"))
	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ConfigFile), []byte("not = [valid"), 0600))

	_, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.api_key", "sk-secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("retrieval.max_k", n)
			_ = store.GetInt("retrieval.max_k")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("retrieval.max_k")
	assert.True(t, ok)
}

func TestFlattenAndNestMap(t *testing.T) {
	flat := map[string]any{
		"embedding.provider": "ollama",
		"embedding.model":    "bge-m3",
		"top":                1,
		"a":                  "scalar",
		"a.b":                2,
	}

	nested := nestMap(flat)

	assert.Equal(t, map[string]any{"provider": "ollama", "model": "bge-m3"}, nested["embedding"])
	assert.Equal(t, 1, nested["top"])
	assert.Equal(t, "scalar", nested["a"])
	assert.Equal(t, 2, nested["a.b"])

	assert.Equal(t, map[string]any{"x.y.z": 1, "x.w": "v"},
		flattenMap(map[string]any{"x": map[string]any{"y": map[string]any{"z": 1}, "w": "v"}}, ""))
}
