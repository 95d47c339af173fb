package domain

import (
	"fmt"
	"strings"
	"time"
)

// RecordKind tags the kind of content held by an IndexedRecord.
type RecordKind string

// Available record kinds.
const (
	// RecordKindChapter is a chunk (or the summary) of a chapter.
	RecordKindChapter RecordKind = "chapter"

	// RecordKindCharacter is a compact character profile.
	RecordKindCharacter RecordKind = "character"

	// RecordKindWiki is a compact world/wiki entry.
	RecordKindWiki RecordKind = "wiki"

	// RecordKindStyleSample is a chunk of a style reference text.
	RecordKindStyleSample RecordKind = "style_sample"
)

// IsValid returns true if the record kind is recognised.
func (k RecordKind) IsValid() bool {
	switch k {
	case RecordKindChapter, RecordKindCharacter, RecordKindWiki, RecordKindStyleSample:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k RecordKind) String() string {
	return string(k)
}

// AllRecordKinds returns every record kind.
func AllRecordKinds() []RecordKind {
	return []RecordKind{
		RecordKindChapter,
		RecordKindCharacter,
		RecordKindWiki,
		RecordKindStyleSample,
	}
}

// ParseRecordKinds converts names such as "chapter" or "wiki" into kinds.
// Unknown names fail with ErrUnsupportedType.
func ParseRecordKinds(names []string) ([]RecordKind, error) {
	kinds := make([]RecordKind, 0, len(names))
	for _, name := range names {
		kind := RecordKind(strings.ToLower(strings.TrimSpace(name)))
		if kind == "" {
			continue
		}
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: record kind %q", ErrUnsupportedType, name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Well-known metadata keys. Metadata is opaque to ranking; these keys are
// only read by filters and the context assembler.
const (
	MetaProjectID = "project_id"
	MetaEntityID  = "entity_id"
	MetaTitle     = "title"
	MetaName      = "name"
	MetaPart      = "part"
	MetaChunk     = "chunk_index"
)

// Record parts distinguish chapter body chunks from chapter summaries.
const (
	PartBody    = "body"
	PartSummary = "summary"
)

// IndexedRecord is a unit of retrievable knowledge.
type IndexedRecord struct {
	// ID is globally unique and stable across re-indexing of the same unit.
	ID string

	// RelatedID is the owning entity's key, see EntityKey.
	// Many records may share it; deleting the entity deletes them all.
	RelatedID string

	// Kind tags the content type.
	Kind RecordKind

	// Text is the indexed content.
	Text string

	// Vector is the embedding. Nil means keyword-only scoring applies.
	Vector []float32

	// Order is the source document's sequence position (chapter order).
	// Nil when not applicable.
	Order *int

	// Timestamp is the creation or update time.
	Timestamp time.Time

	// Metadata holds free-form side data.
	Metadata map[string]any
}

// HasVector returns true if the record carries an embedding.
func (r *IndexedRecord) HasVector() bool {
	return len(r.Vector) > 0
}

// OrderValue returns the order, or 0 when absent.
func (r *IndexedRecord) OrderValue() int {
	if r.Order == nil {
		return 0
	}
	return *r.Order
}

// MetaString returns a string metadata value, or "" when absent.
func (r *IndexedRecord) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// Validate checks the fields ranking depends on.
func (r *IndexedRecord) Validate() error {
	if r.ID == "" || r.RelatedID == "" || r.Text == "" {
		return ErrMalformedRecord
	}
	if !r.Kind.IsValid() {
		return ErrMalformedRecord
	}
	return nil
}

// EntityID returns the project-local ID of the owning entity.
func (r *IndexedRecord) EntityID() string {
	if id := r.MetaString(MetaEntityID); id != "" {
		return id
	}
	return r.RelatedID
}

// EntityKey scopes an entity ID to its project. Records are stored under
// this key, so entities of different projects sharing a store never
// replace or delete each other.
func EntityKey(projectID, id string) string {
	if projectID == "" {
		return id
	}
	return projectID + "/" + id
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Chunk is an ephemeral slice of a longer text produced by the chunker.
type Chunk struct {
	// Text is the chunk content, including any overlap prefix.
	Text string

	// StartOffsetHint is the rune offset in the source text where the
	// chunk's first new (non-overlap) sentence begins.
	StartOffsetHint int
}
