package driven

import (
	"context"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// RecordStore persists indexed records.
// It is treated as an unordered, full-scan-readable store keyed by record ID,
// with a secondary lookup by RelatedID.
type RecordStore interface {
	// PutAll inserts or replaces records by ID.
	PutAll(ctx context.Context, records []domain.IndexedRecord) error

	// GetAll returns a snapshot of every record.
	GetAll(ctx context.Context) ([]domain.IndexedRecord, error)

	// DeleteByRelatedID removes every record of an entity.
	DeleteByRelatedID(ctx context.Context, relatedID string) error

	// ReplaceByRelatedID atomically deletes every record of an entity and
	// inserts the given ones. Readers never observe a half-replaced entity.
	ReplaceByRelatedID(ctx context.Context, relatedID string, records []domain.IndexedRecord) error

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
