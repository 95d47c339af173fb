package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
	"github.com/custodia-labs/loom/internal/logger"
	"github.com/custodia-labs/loom/internal/postprocessors/chunker"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// Indexing defaults.
const (
	// DefaultEmbedBatchSize is how many texts are sent per embedding call.
	DefaultEmbedBatchSize = 16

	// DefaultEmbedRate is the sustained embedding calls per second.
	DefaultEmbedRate = 5
)

// recordNamespace seeds deterministic record IDs.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/custodia-labs/loom/records"))

// IndexService chunks, embeds and persists source entities.
type IndexService struct {
	store     driven.RecordStore
	embedder  driven.EmbeddingService
	chunker   *chunker.Chunker
	limiter   *rate.Limiter
	batchSize int
	now       func() time.Time

	wg sync.WaitGroup
}

// IndexOption configures an IndexService.
type IndexOption func(*IndexService)

// WithChunker sets the chunker used for chapters and style samples.
func WithChunker(c *chunker.Chunker) IndexOption {
	return func(s *IndexService) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithEmbedRateLimit throttles embedding calls to r per second with the
// given burst. A zero limit disables throttling.
func WithEmbedRateLimit(r float64, burst int) IndexOption {
	return func(s *IndexService) {
		if r <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithEmbedBatchSize sets how many texts are embedded per call.
func WithEmbedBatchSize(n int) IndexOption {
	return func(s *IndexService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) IndexOption {
	return func(s *IndexService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIndexService creates a new index service.
// The embedder is optional (can be nil); records are then stored without
// vectors and ranked keyword-only.
func NewIndexService(store driven.RecordStore, embedder driven.EmbeddingService, opts ...IndexOption) *IndexService {
	s := &IndexService{
		store:     store,
		embedder:  embedder,
		chunker:   chunker.New(),
		limiter:   rate.NewLimiter(rate.Limit(DefaultEmbedRate), DefaultEmbedRate),
		batchSize: DefaultEmbedBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordID derives the stable ID of one record of an entity.
// Re-indexing the same entity yields the same IDs.
func RecordID(kind domain.RecordKind, relatedID, part string, index int) string {
	name := strings.Join([]string{kind.String(), relatedID, part, strconv.Itoa(index)}, "/")
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// IndexChapter chunks the chapter body, adds its summary as an extra
// record, embeds everything and replaces the chapter's records.
func (s *IndexService) IndexChapter(ctx context.Context, chapter domain.Chapter) domain.IndexReport {
	key := domain.EntityKey(chapter.ProjectID, chapter.ID)
	report := domain.IndexReport{RelatedID: key, Kind: domain.RecordKindChapter}
	if chapter.ID == "" {
		report.Err = fmt.Errorf("index chapter: missing id: %w", domain.ErrInvalidInput)
		return report
	}

	order := chapter.Order
	meta := func(part string, index int) map[string]any {
		return map[string]any{
			domain.MetaProjectID: chapter.ProjectID,
			domain.MetaEntityID:  chapter.ID,
			domain.MetaTitle:     chapter.Title,
			domain.MetaPart:      part,
			domain.MetaChunk:     index,
		}
	}

	now := s.now()
	var records []domain.IndexedRecord
	for i, c := range s.chunker.ChunkWithOffsets(chapter.Content) {
		records = append(records, domain.IndexedRecord{
			ID:        RecordID(domain.RecordKindChapter, key, domain.PartBody, i),
			RelatedID: key,
			Kind:      domain.RecordKindChapter,
			Text:      c.Text,
			Order:     &order,
			Timestamp: now,
			Metadata:  meta(domain.PartBody, i),
		})
	}
	if summary := strings.TrimSpace(chapter.Summary); summary != "" {
		records = append(records, domain.IndexedRecord{
			ID:        RecordID(domain.RecordKindChapter, key, domain.PartSummary, 0),
			RelatedID: key,
			Kind:      domain.RecordKindChapter,
			Text:      summary,
			Order:     &order,
			Timestamp: now,
			Metadata:  meta(domain.PartSummary, 0),
		})
	}

	return s.index(ctx, report, records)
}

// IndexCharacter stores the character as one compact summary record.
func (s *IndexService) IndexCharacter(ctx context.Context, character domain.Character) domain.IndexReport {
	key := domain.EntityKey(character.ProjectID, character.ID)
	report := domain.IndexReport{RelatedID: key, Kind: domain.RecordKindCharacter}
	if character.ID == "" || strings.TrimSpace(character.Name) == "" {
		report.Err = fmt.Errorf("index character: missing id or name: %w", domain.ErrInvalidInput)
		return report
	}

	rec := domain.IndexedRecord{
		ID:        RecordID(domain.RecordKindCharacter, key, domain.PartSummary, 0),
		RelatedID: key,
		Kind:      domain.RecordKindCharacter,
		Text:      character.Summary(),
		Timestamp: s.now(),
		Metadata: map[string]any{
			domain.MetaProjectID: character.ProjectID,
			domain.MetaEntityID:  character.ID,
			domain.MetaName:      character.Name,
		},
	}
	return s.index(ctx, report, []domain.IndexedRecord{rec})
}

// IndexWikiEntry stores the entry as one compact summary record.
func (s *IndexService) IndexWikiEntry(ctx context.Context, entry domain.WikiEntry) domain.IndexReport {
	key := domain.EntityKey(entry.ProjectID, entry.ID)
	report := domain.IndexReport{RelatedID: key, Kind: domain.RecordKindWiki}
	if entry.ID == "" || strings.TrimSpace(entry.Name) == "" {
		report.Err = fmt.Errorf("index wiki entry: missing id or name: %w", domain.ErrInvalidInput)
		return report
	}

	rec := domain.IndexedRecord{
		ID:        RecordID(domain.RecordKindWiki, key, domain.PartSummary, 0),
		RelatedID: key,
		Kind:      domain.RecordKindWiki,
		Text:      entry.Summary(),
		Timestamp: s.now(),
		Metadata: map[string]any{
			domain.MetaProjectID: entry.ProjectID,
			domain.MetaEntityID:  entry.ID,
			domain.MetaName:      entry.Name,
		},
	}
	return s.index(ctx, report, []domain.IndexedRecord{rec})
}

// IndexStyleSample chunks and stores a style reference.
func (s *IndexService) IndexStyleSample(ctx context.Context, sample domain.StyleSample) domain.IndexReport {
	key := domain.EntityKey(sample.ProjectID, sample.ID)
	report := domain.IndexReport{RelatedID: key, Kind: domain.RecordKindStyleSample}
	if sample.ID == "" {
		report.Err = fmt.Errorf("index style sample: missing id: %w", domain.ErrInvalidInput)
		return report
	}

	now := s.now()
	var records []domain.IndexedRecord
	for i, c := range s.chunker.ChunkWithOffsets(sample.Content) {
		records = append(records, domain.IndexedRecord{
			ID:        RecordID(domain.RecordKindStyleSample, key, domain.PartBody, i),
			RelatedID: key,
			Kind:      domain.RecordKindStyleSample,
			Text:      c.Text,
			Timestamp: now,
			Metadata: map[string]any{
				domain.MetaProjectID: sample.ProjectID,
				domain.MetaEntityID:  sample.ID,
				domain.MetaTitle:     sample.Title,
				domain.MetaChunk:     i,
			},
		})
	}
	return s.index(ctx, report, records)
}

// index embeds the records and replaces the entity's stored records.
func (s *IndexService) index(
	ctx context.Context, report domain.IndexReport, records []domain.IndexedRecord,
) domain.IndexReport {
	start := time.Now()
	logger.Debug("Indexing %s %s: %d records", report.Kind, report.RelatedID, len(records))

	report.Embedded, report.Warnings = s.embed(ctx, records)

	if err := s.store.ReplaceByRelatedID(ctx, report.RelatedID, records); err != nil {
		logger.Warn("Indexing %s %s aborted: %v", report.Kind, report.RelatedID, err)
		report.Err = fmt.Errorf("store %s %s: %w", report.Kind, report.RelatedID, err)
		report.Duration = time.Since(start)
		return report
	}

	report.Records = len(records)
	report.Duration = time.Since(start)
	logger.Info("Indexed %s %s: %d records, %d embedded", report.Kind, report.RelatedID,
		report.Records, report.Embedded)
	return report
}

// embed attaches vectors in place. It stops at the first failing batch;
// records without a vector are still stored and ranked keyword-only.
func (s *IndexService) embed(ctx context.Context, records []domain.IndexedRecord) (int, []string) {
	if s.embedder == nil || len(records) == 0 {
		return 0, nil
	}

	dims := s.embedder.Dimensions()
	embedded := 0
	var warnings []string

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))

		if err := s.limiter.Wait(ctx); err != nil {
			warnings = append(warnings, fmt.Sprintf("embedding interrupted: %v", err))
			break
		}

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = records[start+i].Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))
		}
		if err != nil {
			logger.Warn("Embedding failed, storing remaining records without vectors: %v", err)
			warnings = append(warnings, fmt.Sprintf("embedding failed: %v", err))
			break
		}

		for i, vec := range vectors {
			if dims > 0 && len(vec) != dims {
				warnings = append(warnings, fmt.Sprintf("record %s: %v: got %d, want %d",
					records[start+i].ID, domain.ErrDimensionMismatch, len(vec), dims))
				continue
			}
			records[start+i].Vector = vec
			embedded++
		}
	}

	return embedded, warnings
}

// IndexAsync runs fn in a goroutine. Failures are logged and delivered on
// the returned channel; they never reach the caller's flow.
func (s *IndexService) IndexAsync(
	ctx context.Context, fn func(ctx context.Context) domain.IndexReport,
) <-chan domain.IndexReport {
	ch := make(chan domain.IndexReport, 1)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(ch)

		report := fn(ctx)
		if report.Err != nil {
			logger.Warn("Background indexing of %s failed: %v", report.RelatedID, report.Err)
		}
		ch <- report
	}()

	return ch
}

// Wait blocks until every background indexing job has finished.
func (s *IndexService) Wait() {
	s.wg.Wait()
}

// DeleteEntity removes every record of an entity. relatedID is the
// entity's key as built by domain.EntityKey.
func (s *IndexService) DeleteEntity(ctx context.Context, relatedID string) error {
	if relatedID == "" {
		return fmt.Errorf("delete entity: %w", domain.ErrInvalidInput)
	}
	if err := s.store.DeleteByRelatedID(ctx, relatedID); err != nil {
		return fmt.Errorf("delete entity %s: %w", relatedID, err)
	}
	logger.Info("Deleted records of %s", relatedID)
	return nil
}

// Clear removes every record.
func (s *IndexService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
