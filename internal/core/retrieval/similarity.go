package retrieval

import (
	"math"
	"strings"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// It returns 0 when the vectors differ in length, are empty, or either has
// zero magnitude; that is treated as "no signal" rather than an error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding drift.
	return math.Max(-1, math.Min(1, sim))
}

// KeywordMatchScore returns the fraction of keywords occurring in text as
// substrings, in [0, 1]. Empty keywords or empty text score 0.
func KeywordMatchScore(keywords []string, text string) float64 {
	if len(keywords) == 0 || text == "" {
		return 0
	}

	matched := 0
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}
