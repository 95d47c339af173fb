package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
// A single lock guards both indexes, so replacing an entity is atomic for
// readers.
type RecordStore struct {
	mu        sync.RWMutex
	records   map[string]domain.IndexedRecord
	byRelated map[string]map[string]struct{}
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records:   make(map[string]domain.IndexedRecord),
		byRelated: make(map[string]map[string]struct{}),
	}
}

// PutAll inserts or replaces records by ID.
func (s *RecordStore) PutAll(_ context.Context, records []domain.IndexedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		s.put(records[i])
	}
	return nil
}

// GetAll returns a copy of every record, ordered by ID.
func (s *RecordStore) GetAll(_ context.Context) ([]domain.IndexedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.IndexedRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteByRelatedID removes every record of an entity.
func (s *RecordStore) DeleteByRelatedID(_ context.Context, relatedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteRelated(relatedID)
	return nil
}

// ReplaceByRelatedID deletes the entity's records and inserts the given
// ones under one lock.
func (s *RecordStore) ReplaceByRelatedID(
	_ context.Context, relatedID string, records []domain.IndexedRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteRelated(relatedID)
	for i := range records {
		s.put(records[i])
	}
	return nil
}

// Clear removes every record.
func (s *RecordStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.records)
	clear(s.byRelated)
	return nil
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// put must be called with the write lock held.
func (s *RecordStore) put(rec domain.IndexedRecord) {
	if old, ok := s.records[rec.ID]; ok && old.RelatedID != rec.RelatedID {
		delete(s.byRelated[old.RelatedID], rec.ID)
	}
	s.records[rec.ID] = clone(rec)

	ids, ok := s.byRelated[rec.RelatedID]
	if !ok {
		ids = make(map[string]struct{})
		s.byRelated[rec.RelatedID] = ids
	}
	ids[rec.ID] = struct{}{}
}

// deleteRelated must be called with the write lock held.
func (s *RecordStore) deleteRelated(relatedID string) {
	for id := range s.byRelated[relatedID] {
		delete(s.records, id)
	}
	delete(s.byRelated, relatedID)
}

// clone copies the slices and maps of a record so callers cannot mutate
// stored state.
func clone(rec domain.IndexedRecord) domain.IndexedRecord {
	rec.Vector = slices.Clone(rec.Vector)
	rec.Metadata = maps.Clone(rec.Metadata)
	if rec.Order != nil {
		rec.Order = domain.IntPtr(*rec.Order)
	}
	return rec
}
