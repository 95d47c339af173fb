package domain

import "time"

// BuildOptions tunes a single context build.
type BuildOptions struct {
	// ProjectID restricts retrieval to records of one project.
	// Empty means all projects.
	ProjectID string

	// Kinds restricts retrieval to the given record kinds.
	// Empty means all kinds except style samples.
	Kinds []RecordKind

	// ExcludeRelatedIDs drops records of these entities, such as the
	// chapter currently being written. Both entity keys and IDs local to
	// ProjectID are accepted.
	ExcludeRelatedIDs []string

	// CurrentOrder is the order of the chapter being written. When set,
	// chapters with a higher order are ignored and it caps recency.
	CurrentOrder *int

	// Weights overrides the configured ranking weights.
	Weights *Weights

	// MinK and MaxK bound the number of retrieved candidates.
	MinK int
	MaxK int

	// AvgChunkTokens estimates the size of one retrieved chunk.
	AvgChunkTokens int
}

// ContextResult is the outcome of building a context.
type ContextResult struct {
	// Text is the assembled context block, ready for prompt injection.
	Text string

	// Candidates are the ranked candidates in assembly order.
	Candidates []RetrievalCandidate

	// Degraded is true if ranking fell back to keyword-only.
	Degraded bool

	// Skipped counts malformed records left out of scoring.
	Skipped int

	// Warnings describe every degraded path taken.
	Warnings []string
}

// IndexReport describes the outcome of indexing one entity.
type IndexReport struct {
	// RelatedID is the indexed entity.
	RelatedID string

	// Kind is the entity's record kind.
	Kind RecordKind

	// Records is the number of records written.
	Records int

	// Embedded is the number of records that received a vector.
	Embedded int

	// Duration is how long indexing took.
	Duration time.Duration

	// Warnings describe non-fatal problems (e.g. embedding skipped).
	Warnings []string

	// Err is set when indexing aborted. Previously indexed data for
	// other entities is untouched.
	Err error
}

// OK returns true if indexing completed.
func (r IndexReport) OK() bool {
	return r.Err == nil
}
