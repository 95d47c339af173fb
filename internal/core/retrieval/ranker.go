package retrieval

import (
	"sort"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// Query carries the signals a query contributes to ranking.
type Query struct {
	// Vector is the query embedding. Nil when the embedding provider is
	// unavailable; ranking then degrades to keyword-only.
	Vector []float32

	// Keywords are the query's lexical keys, usually from ExtractKeywords.
	Keywords []string
}

// RankResult is the outcome of ranking.
type RankResult struct {
	// Candidates are the top results, best first.
	Candidates []domain.RetrievalCandidate

	// Degraded is true if the vector weight was forced to zero because no
	// query vector was available.
	Degraded bool

	// Skipped counts malformed records that were not scored.
	Skipped int

	// Scored counts records that received a non-zero score.
	Scored int
}

// Ranker combines vector, keyword and recency signals into one composite
// score and selects the best candidates.
type Ranker struct {
	maxPerEntity int
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithMaxPerEntity caps how many records sharing one RelatedID may be
// returned. Zero means no cap.
func WithMaxPerEntity(n int) RankerOption {
	return func(r *Ranker) {
		if n >= 0 {
			r.maxPerEntity = n
		}
	}
}

// NewRanker creates a ranker.
func NewRanker(opts ...RankerOption) *Ranker {
	r := &Ranker{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every record against the query and returns at most k
// candidates ordered by composite score, best first.
//
//	composite = (w.Vector*vectorSimilarity + w.Keyword*keywordScore) * recencyWeight
//
// Records without a vector score 0 on the vector signal. Without a query
// vector the vector weight is forced to 0 and the result is marked
// Degraded. Malformed records (missing fields, or a vector whose length
// differs from the query's) are skipped. Records with no signal at all
// are dropped. Ties prefer the higher order, then the smaller ID.
func (r *Ranker) Rank(
	q Query, records []domain.IndexedRecord, maxOrder int, w domain.Weights, k int,
) RankResult {
	var result RankResult
	if k <= 0 {
		return result
	}

	if len(q.Vector) == 0 {
		w.Vector = 0
		result.Degraded = true
	}

	scored := make([]domain.RetrievalCandidate, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.Validate() != nil {
			result.Skipped++
			continue
		}

		var vecSim float64
		if len(q.Vector) > 0 && rec.HasVector() {
			if len(rec.Vector) != len(q.Vector) {
				result.Skipped++
				continue
			}
			vecSim = CosineSimilarity(q.Vector, rec.Vector)
		}

		kwScore := KeywordMatchScore(q.Keywords, rec.Text)

		recency := 1.0
		if rec.Order != nil {
			recency = TimeDecay(*rec.Order, maxOrder)
		}

		composite := (w.Vector*vecSim + w.Keyword*kwScore) * recency
		if composite <= 0 {
			continue
		}

		scored = append(scored, domain.RetrievalCandidate{
			Record:           *rec,
			VectorSimilarity: vecSim,
			KeywordScore:     kwScore,
			RecencyWeight:    recency,
			CompositeScore:   composite,
		})
	}
	result.Scored = len(scored)

	sort.Slice(scored, func(i, j int) bool {
		a, b := &scored[i], &scored[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		oa, ob := orderKey(&a.Record), orderKey(&b.Record)
		if oa != ob {
			return oa > ob
		}
		return a.Record.ID < b.Record.ID
	})

	result.Candidates = r.selectTop(scored, k)
	return result
}

// selectTop takes the first k candidates, honouring the per-entity cap.
func (r *Ranker) selectTop(sorted []domain.RetrievalCandidate, k int) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, 0, min(k, len(sorted)))
	perEntity := make(map[string]int)

	for i := range sorted {
		if len(out) == k {
			break
		}
		related := sorted[i].Record.RelatedID
		if r.maxPerEntity > 0 && perEntity[related] >= r.maxPerEntity {
			continue
		}
		perEntity[related]++
		out = append(out, sorted[i])
	}
	return out
}

// orderKey sorts records without an order below any ordered record.
func orderKey(rec *domain.IndexedRecord) int {
	if rec.Order == nil {
		return -1
	}
	return *rec.Order
}

// Rank ranks records with an uncapped Ranker.
func Rank(q Query, records []domain.IndexedRecord, maxOrder int, w domain.Weights, k int) []domain.RetrievalCandidate {
	return NewRanker().Rank(q, records, maxOrder, w, k).Candidates
}
