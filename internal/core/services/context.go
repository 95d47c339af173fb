package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
	"github.com/custodia-labs/loom/internal/core/retrieval"
	"github.com/custodia-labs/loom/internal/logger"
)

// Ensure ContextService implements the interface.
var _ driving.ContextBuilder = (*ContextService)(nil)

// ContextService retrieves and assembles prompt context.
type ContextService struct {
	store     driven.RecordStore
	embedder  driven.EmbeddingService
	settings  domain.RetrievalSettings
	ranker    *retrieval.Ranker
	assembler *retrieval.Assembler
	styles    retrieval.RelevanceScorer
}

// NewContextService creates a new context service.
// The embedder is optional (can be nil); ranking is then keyword-only.
func NewContextService(
	store driven.RecordStore,
	embedder driven.EmbeddingService,
	settings domain.RetrievalSettings,
) *ContextService {
	defaults := domain.DefaultAppSettings().Retrieval
	if settings.Weights.IsZero() {
		settings.Weights = defaults.Weights
	}
	if settings.TokenBudget <= 0 {
		settings.TokenBudget = defaults.TokenBudget
	}
	if settings.AvgChunkTokens <= 0 {
		settings.AvgChunkTokens = defaults.AvgChunkTokens
	}
	if settings.MinK <= 0 {
		settings.MinK = defaults.MinK
	}
	if settings.MaxK <= 0 {
		settings.MaxK = defaults.MaxK
	}
	if settings.QueryTimeoutMS <= 0 {
		settings.QueryTimeoutMS = defaults.QueryTimeoutMS
	}

	return &ContextService{
		store:     store,
		embedder:  embedder,
		settings:  settings,
		ranker:    retrieval.NewRanker(retrieval.WithMaxPerEntity(settings.MaxPerEntity)),
		assembler: retrieval.NewAssembler(),
		styles:    retrieval.BigramScorer{},
	}
}

// BuildContext retrieves the records most relevant to query and renders
// them within tokenBudget. A non-positive budget uses the configured one.
func (s *ContextService) BuildContext(
	ctx context.Context, query string, tokenBudget int, opts domain.BuildOptions,
) (domain.ContextResult, error) {
	if s.store == nil {
		return domain.ContextResult{}, fmt.Errorf("build context: %w", domain.ErrStoreUnavailable)
	}

	logger.Section("Context Build")
	defer logger.Since("context build", time.Now())
	var result domain.ContextResult

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning empty context")
		return result, nil
	}
	if tokenBudget <= 0 {
		tokenBudget = s.settings.TokenBudget
	}

	records, err := s.store.GetAll(ctx)
	if err != nil {
		logger.Warn("Record store read failed: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("record store unavailable: %v", err))
		return result, nil
	}

	records = filterRecords(records, opts)
	maxOrder := maxChapterOrder(records, opts.CurrentOrder)
	logger.Debug("Candidates: %d records, max order %d", len(records), maxOrder)

	q := retrieval.Query{Keywords: retrieval.ExtractKeywords(query)}
	q.Vector, err = s.embedQuery(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed, ranking keyword-only: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("keyword-only ranking: %v", err))
	}

	weights := s.settings.Weights
	if opts.Weights != nil && !opts.Weights.IsZero() {
		weights = *opts.Weights
	}

	k := retrieval.DynamicTopK(
		tokenBudget,
		pick(opts.AvgChunkTokens, s.settings.AvgChunkTokens),
		pick(opts.MinK, s.settings.MinK),
		pick(opts.MaxK, s.settings.MaxK),
	)
	logger.Debug("Keywords: %v, k=%d, weights=%+v", q.Keywords, k, weights)

	ranked := s.ranker.Rank(q, records, maxOrder, weights, k)
	result.Degraded = ranked.Degraded
	result.Skipped = ranked.Skipped
	if ranked.Skipped > 0 {
		logger.Warn("Skipped %d malformed records", ranked.Skipped)
		result.Warnings = append(result.Warnings, fmt.Sprintf("skipped %d malformed records", ranked.Skipped))
	}

	assembly := s.assembler.AssembleDetailed(ranked.Candidates, tokenBudget)
	result.Text = assembly.Text
	result.Candidates = ranked.Candidates[:assembly.Included]

	logger.Info("Context: %d of %d ranked candidates, ~%d tokens (degraded=%t)",
		assembly.Included, len(ranked.Candidates), assembly.Tokens, result.Degraded)

	return result, nil
}

// embedQuery returns the query vector, or an error explaining why there is
// none. The call is bounded by the configured query timeout.
func (s *ContextService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.settings.QueryTimeoutMS)*time.Millisecond)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// MatchStyleSamples ranks style-sample records by character bigram
// similarity to text and returns at most k of them.
func (s *ContextService) MatchStyleSamples(
	ctx context.Context, text string, k int, projectID string,
) ([]domain.RetrievalCandidate, error) {
	if s.store == nil {
		return nil, fmt.Errorf("match style samples: %w", domain.ErrStoreUnavailable)
	}
	if k <= 0 || strings.TrimSpace(text) == "" {
		return []domain.RetrievalCandidate{}, nil
	}

	records, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("match style samples: %w", err)
	}

	query := retrieval.Scorable{Text: text}
	var out []domain.RetrievalCandidate
	for i := range records {
		rec := &records[i]
		if rec.Kind != domain.RecordKindStyleSample || rec.Validate() != nil {
			continue
		}
		if projectID != "" && rec.MetaString(domain.MetaProjectID) != projectID {
			continue
		}
		score := s.styles.Score(query, retrieval.Scorable{Text: rec.Text, Vector: rec.Vector})
		if score <= 0 {
			continue
		}
		out = append(out, domain.RetrievalCandidate{
			Record:         *rec,
			RecencyWeight:  1,
			CompositeScore: score,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		return out[i].Record.ID < out[j].Record.ID
	})
	if len(out) > k {
		out = out[:k]
	}

	logger.Debug("Style samples matched: %d (scorer=%s)", len(out), s.styles.Name())
	return out, nil
}

// filterRecords applies project, kind, exclusion and order filters.
func filterRecords(records []domain.IndexedRecord, opts domain.BuildOptions) []domain.IndexedRecord {
	kinds := make(map[domain.RecordKind]bool)
	if len(opts.Kinds) == 0 {
		kinds[domain.RecordKindChapter] = true
		kinds[domain.RecordKindCharacter] = true
		kinds[domain.RecordKindWiki] = true
	}
	for _, k := range opts.Kinds {
		kinds[k] = true
	}

	excluded := make(map[string]bool, len(opts.ExcludeRelatedIDs))
	for _, id := range opts.ExcludeRelatedIDs {
		excluded[id] = true
		excluded[domain.EntityKey(opts.ProjectID, id)] = true
	}

	out := records[:0:0]
	for i := range records {
		rec := &records[i]
		if !kinds[rec.Kind] || excluded[rec.RelatedID] {
			continue
		}
		if opts.ProjectID != "" && rec.MetaString(domain.MetaProjectID) != opts.ProjectID {
			continue
		}
		if opts.CurrentOrder != nil && rec.Kind == domain.RecordKindChapter &&
			rec.Order != nil && *rec.Order > *opts.CurrentOrder {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// maxChapterOrder returns current when set, else the highest chapter order.
func maxChapterOrder(records []domain.IndexedRecord, current *int) int {
	if current != nil {
		return *current
	}
	maxOrder := 0
	for i := range records {
		if records[i].Kind == domain.RecordKindChapter && records[i].OrderValue() > maxOrder {
			maxOrder = records[i].OrderValue()
		}
	}
	return maxOrder
}

// pick returns override when positive, else fallback.
func pick(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
