package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/logger"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore implements driven.RecordStore on the records table.
type RecordStore struct {
	store *Store
}

const upsertRecord = `
	INSERT INTO records (id, related_id, kind, text, vector, sort_order, updated_at, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		related_id = excluded.related_id,
		kind = excluded.kind,
		text = excluded.text,
		vector = excluded.vector,
		sort_order = excluded.sort_order,
		updated_at = excluded.updated_at,
		metadata = excluded.metadata
`

// PutAll inserts or replaces records by ID in one transaction.
func (r *RecordStore) PutAll(ctx context.Context, records []domain.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, records)
	})
}

// GetAll returns every record ordered by ID. Rows that cannot be decoded
// are logged and left out; they never fail the whole read.
func (r *RecordStore) GetAll(ctx context.Context) ([]domain.IndexedRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, related_id, kind, text, vector, sort_order, updated_at, metadata
		FROM records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.IndexedRecord
	skipped := 0
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			logger.Warn("Skipping record %q: %v", rec.ID, err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	if skipped > 0 {
		logger.Debug("Read %d records, skipped %d malformed", len(records), skipped)
	}
	return records, nil
}

// DeleteByRelatedID removes every record of an entity.
func (r *RecordStore) DeleteByRelatedID(ctx context.Context, relatedID string) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM records WHERE related_id = ?", relatedID); err != nil {
		return fmt.Errorf("deleting records of %s: %w", relatedID, err)
	}
	return nil
}

// ReplaceByRelatedID deletes and re-inserts an entity's records in one
// transaction.
func (r *RecordStore) ReplaceByRelatedID(
	ctx context.Context, relatedID string, records []domain.IndexedRecord,
) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE related_id = ?", relatedID); err != nil {
			return fmt.Errorf("deleting records of %s: %w", relatedID, err)
		}
		return insertRecords(ctx, tx, records)
	})
}

// Clear removes every record.
func (r *RecordStore) Clear(ctx context.Context) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *RecordStore) Close() error {
	return r.store.Close()
}

func (r *RecordStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []domain.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]

		metadata := rec.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata of %s: %w", rec.ID, err)
		}

		var order sql.NullInt64
		if rec.Order != nil {
			order = sql.NullInt64{Int64: int64(*rec.Order), Valid: true}
		}

		var updated int64
		if !rec.Timestamp.IsZero() {
			updated = rec.Timestamp.UnixNano()
		}

		if _, err := stmt.ExecContext(ctx, rec.ID, rec.RelatedID, rec.Kind.String(), rec.Text,
			float32SliceToBytes(rec.Vector), order, updated, string(metadataJSON)); err != nil {
			return fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// scanRecord scans a single record row.
func scanRecord(rows *sql.Rows) (domain.IndexedRecord, error) {
	var (
		rec          domain.IndexedRecord
		kind         string
		vector       []byte
		order        sql.NullInt64
		updated      int64
		metadataJSON string
	)

	if err := rows.Scan(&rec.ID, &rec.RelatedID, &kind, &rec.Text, &vector, &order,
		&updated, &metadataJSON); err != nil {
		return rec, fmt.Errorf("%w: scanning row: %v", domain.ErrMalformedRecord, err)
	}

	rec.Kind = domain.RecordKind(kind)
	vec, err := bytesToFloat32Slice(vector)
	if err != nil {
		return rec, err
	}
	rec.Vector = vec
	if order.Valid {
		rec.Order = domain.IntPtr(int(order.Int64))
	}
	if updated != 0 {
		rec.Timestamp = time.Unix(0, updated).UTC()
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("%w: metadata: %v", domain.ErrMalformedRecord, err)
		}
	}
	return rec, nil
}
