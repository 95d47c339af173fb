package driving

import (
	"context"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// IndexService turns source entities into indexed records.
// Every method returns a report instead of failing the caller; Err is set
// on the report when the entity could not be indexed.
type IndexService interface {
	// IndexChapter chunks, embeds and stores a chapter.
	IndexChapter(ctx context.Context, chapter domain.Chapter) domain.IndexReport

	// IndexCharacter stores a character profile summary.
	IndexCharacter(ctx context.Context, character domain.Character) domain.IndexReport

	// IndexWikiEntry stores a wiki entry summary.
	IndexWikiEntry(ctx context.Context, entry domain.WikiEntry) domain.IndexReport

	// IndexStyleSample chunks and stores a style reference.
	IndexStyleSample(ctx context.Context, sample domain.StyleSample) domain.IndexReport

	// IndexAsync runs fn in the background and delivers its report.
	// The returned channel receives exactly one report and is then closed.
	IndexAsync(ctx context.Context, fn func(ctx context.Context) domain.IndexReport) <-chan domain.IndexReport

	// DeleteEntity removes every record of an entity. relatedID is the key
	// reported by the Index methods, see domain.EntityKey.
	DeleteEntity(ctx context.Context, relatedID string) error

	// Clear removes every record.
	Clear(ctx context.Context) error
}
