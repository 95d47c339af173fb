package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
)

// fakeEmbedder maps texts to vectors by keyword: a text containing "剑"
// points along the first axis, anything else along the second.
type fakeEmbedder struct {
	mu      sync.Mutex
	err     error
	dims    int
	calls   int
	batches [][]string
	block   bool
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) vector(text string) []float32 {
	if strings.Contains(text, "剑") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.batches = append(f.batches, texts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return f.dims }
func (f *fakeEmbedder) ModelName() string            { return "fake-embed" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return f.err }
func (f *fakeEmbedder) Close() error                 { return nil }

// fakeLLM emits a fixed list of pieces and records the messages it saw.
type fakeLLM struct {
	pieces   []string
	err      error
	messages []driven.ChatMessage
	opts     driven.GenerateOptions
}

var _ driven.LLMService = (*fakeLLM)(nil)

func (f *fakeLLM) Stream(
	_ context.Context, messages []driven.ChatMessage, opts driven.GenerateOptions, emit domain.EmitFunc,
) error {
	f.messages = messages
	f.opts = opts
	for _, p := range f.pieces {
		if err := emit(p); err != nil {
			return err
		}
	}
	return f.err
}

func (f *fakeLLM) ModelName() string            { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

// brokenStore fails every call.
type brokenStore struct{}

var _ driven.RecordStore = brokenStore{}

var errBroken = errors.New("disk on fire")

func (brokenStore) PutAll(context.Context, []domain.IndexedRecord) error { return errBroken }
func (brokenStore) GetAll(context.Context) ([]domain.IndexedRecord, error) {
	return nil, errBroken
}
func (brokenStore) DeleteByRelatedID(context.Context, string) error { return errBroken }
func (brokenStore) ReplaceByRelatedID(context.Context, string, []domain.IndexedRecord) error {
	return errBroken
}
func (brokenStore) Clear(context.Context) error { return errBroken }
func (brokenStore) Close() error                { return nil }
