package manuscript

import (
	"context"
	"time"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
	"github.com/custodia-labs/loom/internal/logger"
)

// IndexProject indexes every entity of p. A failing entity does not stop
// the others; its report carries the error.
func IndexProject(ctx context.Context, p *Project, indexer driving.IndexService) []domain.IndexReport {
	logger.Section("Indexing " + p.ID)
	defer logger.Since("indexing "+p.ID, time.Now())

	reports := make([]domain.IndexReport, 0, len(p.EntityIDs()))
	for _, c := range p.Chapters {
		reports = append(reports, indexer.IndexChapter(ctx, c))
	}
	for _, c := range p.Characters {
		reports = append(reports, indexer.IndexCharacter(ctx, c))
	}
	for _, w := range p.WikiEntries {
		reports = append(reports, indexer.IndexWikiEntry(ctx, w))
	}
	for _, s := range p.StyleSamples {
		reports = append(reports, indexer.IndexStyleSample(ctx, s))
	}

	for _, r := range reports {
		if !r.OK() {
			logger.Warn("index %s %s failed: %v", r.Kind, r.RelatedID, r.Err)
		}
	}
	return reports
}

// Prune removes the records of entities present in before but missing
// from after, and returns the removed entity keys.
func Prune(ctx context.Context, before, after *Project, indexer driving.IndexService) ([]string, error) {
	keep := make(map[string]bool)
	for _, id := range after.EntityKeys() {
		keep[id] = true
	}

	var removed []string
	for _, id := range before.EntityKeys() {
		if keep[id] {
			continue
		}
		if err := indexer.DeleteEntity(ctx, id); err != nil {
			return removed, err
		}
		logger.Debug("pruned %s", id)
		removed = append(removed, id)
	}
	return removed, nil
}
