package mcp

import (
	"context"
	"errors"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// mockContextBuilder is a mock implementation of driving.ContextBuilder.
type mockContextBuilder struct {
	result      domain.ContextResult
	matches     []domain.RetrievalCandidate
	err         error
	gotQuery    string
	gotBudget   int
	gotOpts     domain.BuildOptions
	gotStyleK   int
	gotStyleFor string
}

func (m *mockContextBuilder) BuildContext(
	_ context.Context, query string, tokenBudget int, opts domain.BuildOptions,
) (domain.ContextResult, error) {
	m.gotQuery, m.gotBudget, m.gotOpts = query, tokenBudget, opts
	return m.result, m.err
}

func (m *mockContextBuilder) MatchStyleSamples(
	_ context.Context, text string, k int, _ string,
) ([]domain.RetrievalCandidate, error) {
	m.gotStyleFor, m.gotStyleK = text, k
	return m.matches, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	report     domain.IndexReport
	err        error
	chapters   []domain.Chapter
	characters []domain.Character
	entries    []domain.WikiEntry
	deleted    []string
	async      int
}

func (m *mockIndexService) IndexChapter(_ context.Context, c domain.Chapter) domain.IndexReport {
	m.chapters = append(m.chapters, c)
	return m.withEntity(c.ID, domain.RecordKindChapter)
}

func (m *mockIndexService) IndexCharacter(_ context.Context, c domain.Character) domain.IndexReport {
	m.characters = append(m.characters, c)
	return m.withEntity(c.ID, domain.RecordKindCharacter)
}

func (m *mockIndexService) IndexWikiEntry(_ context.Context, w domain.WikiEntry) domain.IndexReport {
	m.entries = append(m.entries, w)
	return m.withEntity(w.ID, domain.RecordKindWiki)
}

func (m *mockIndexService) IndexStyleSample(_ context.Context, s domain.StyleSample) domain.IndexReport {
	return m.withEntity(s.ID, domain.RecordKindStyleSample)
}

func (m *mockIndexService) IndexAsync(
	ctx context.Context, fn func(ctx context.Context) domain.IndexReport,
) <-chan domain.IndexReport {
	m.async++
	ch := make(chan domain.IndexReport, 1)
	ch <- fn(ctx)
	close(ch)
	return ch
}

func (m *mockIndexService) DeleteEntity(_ context.Context, relatedID string) error {
	if relatedID == "" {
		return domain.ErrInvalidInput
	}
	m.deleted = append(m.deleted, relatedID)
	return m.err
}

func (m *mockIndexService) Clear(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) withEntity(id string, kind domain.RecordKind) domain.IndexReport {
	r := m.report
	r.RelatedID, r.Kind = id, kind
	return r
}

// mockGenerationService streams a fixed list of pieces.
type mockGenerationService struct {
	pieces []string
	err    error
	gotReq domain.GenerationRequest
	result domain.ContextResult
}

func (m *mockGenerationService) Generate(
	ctx context.Context, req domain.GenerationRequest,
) (*domain.GenerationStream, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	stream := domain.NewGenerationStream(ctx, "gen-1", func(_ context.Context, emit domain.EmitFunc) error {
		for _, p := range m.pieces {
			if err := emit(p); err != nil {
				return err
			}
		}
		return nil
	})
	stream.Context = m.result
	return stream, nil
}

// stubPrompts serves prompts from a map.
type stubPrompts map[string]string

func (s stubPrompts) Load(name string) (string, error) {
	p, ok := s[name]
	if !ok {
		return "", errors.New("no such prompt")
	}
	return p, nil
}

func (s stubPrompts) Reload() {}
