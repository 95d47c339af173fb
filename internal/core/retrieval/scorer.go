package retrieval

import "unicode"

// Scorable is anything a RelevanceScorer can compare.
type Scorable struct {
	Text   string
	Vector []float32
}

// RelevanceScorer rates how relevant a candidate is to a query.
// Implementations serve different candidate pools and share no invariants
// beyond returning a finite score.
type RelevanceScorer interface {
	// Name identifies the scorer in logs.
	Name() string

	// Score rates candidate against query.
	Score(query, candidate Scorable) float64
}

// CosineScorer scores by embedding cosine similarity.
type CosineScorer struct{}

// Ensure CosineScorer implements the interface.
var _ RelevanceScorer = CosineScorer{}

// Name returns the scorer name.
func (CosineScorer) Name() string { return "cosine" }

// Score returns the cosine similarity of the two vectors, in [-1, 1].
func (CosineScorer) Score(query, candidate Scorable) float64 {
	return CosineSimilarity(query.Vector, candidate.Vector)
}

// BigramScorer scores by Jaccard similarity of character bigrams. It needs
// no embeddings and is used to match prose style samples.
type BigramScorer struct{}

// Ensure BigramScorer implements the interface.
var _ RelevanceScorer = BigramScorer{}

// Name returns the scorer name.
func (BigramScorer) Name() string { return "bigram" }

// Score returns the bigram Jaccard similarity of the two texts, in [0, 1].
func (BigramScorer) Score(query, candidate Scorable) float64 {
	return BigramSimilarity(query.Text, candidate.Text)
}

// BigramSimilarity is |A∩B| / |A∪B| over the character bigram sets of a
// and b, ignoring whitespace. Texts of a single character use that
// character as their only gram. Empty input scores 0.
func BigramSimilarity(a, b string) float64 {
	ga, gb := bigrams(a), bigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}

	inter := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			inter++
		}
	}
	union := len(ga) + len(gb) - inter
	return float64(inter) / float64(union)
}

func bigrams(s string) map[string]struct{} {
	runes := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}

	set := make(map[string]struct{})
	switch len(runes) {
	case 0:
		return set
	case 1:
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}
