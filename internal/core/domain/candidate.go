package domain

// Weights configures the blend of ranking signals.
type Weights struct {
	// Vector weights the cosine similarity signal.
	Vector float64

	// Keyword weights the keyword match signal.
	Keyword float64
}

// DefaultWeights returns the default semantic-leaning blend.
func DefaultWeights() Weights {
	return Weights{Vector: 0.7, Keyword: 0.3}
}

// IsZero returns true if no weight is set.
func (w Weights) IsZero() bool {
	return w.Vector == 0 && w.Keyword == 0
}

// RetrievalCandidate is a record scored for one query.
type RetrievalCandidate struct {
	// Record is the scored record.
	Record IndexedRecord

	// VectorSimilarity is the cosine similarity to the query vector.
	VectorSimilarity float64

	// KeywordScore is the fraction of query keywords found in the text.
	KeywordScore float64

	// RecencyWeight is the recency multiplier.
	RecencyWeight float64

	// CompositeScore is the final ranking score.
	CompositeScore float64
}
