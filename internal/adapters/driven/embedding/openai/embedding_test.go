package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewEmbeddingService(Config{})
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("defaults", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "sk-test"})
		require.NoError(t, err)

		assert.Equal(t, DefaultBaseURL, svc.baseURL)
		assert.Equal(t, DefaultModel, svc.ModelName())
		assert.Equal(t, 1536, svc.Dimensions())
		assert.False(t, svc.sendDims)
	})

	t.Run("dimension override on v3 model", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "sk-test", Model: "text-embedding-3-large", Dimensions: 256})
		require.NoError(t, err)

		assert.Equal(t, 256, svc.Dimensions())
		assert.True(t, svc.sendDims)
	})

	t.Run("unknown model", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "sk-test", Model: "bge-m3-compatible"})
		require.NoError(t, err)

		assert.Equal(t, 0, svc.Dimensions())
	})
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)
		assert.Zero(t, req.Dimensions)

		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.0,1.0]},
			{"index":0,"embedding":[1.0,0.0]}
		]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	got, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
}

func TestEmbedBatch_SendsDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Dimensions)
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{
		APIKey: "sk-test", BaseURL: server.URL, Model: "text-embedding-3-small", Dimensions: 3,
	})
	require.NoError(t, err)

	got, err := svc.Embed(context.Background(), "short")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestEmbedBatch_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errContains string
	}{
		{"api error object", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`, "Incorrect API key"},
		{"plain text failure", http.StatusBadGateway, `upstream down`, "status 502"},
		{"missing vector", http.StatusOK, `{"data":[{"index":0,"embedding":[1]}]}`, "missing embedding for input 1"},
		{"index out of range", http.StatusOK, `{"data":[{"index":5,"embedding":[1]}]}`, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	good, err := NewEmbeddingService(Config{APIKey: "good", BaseURL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, good.Ping(context.Background()))

	bad, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)
	err = bad.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
