package driving

import (
	"context"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// ContextBuilder assembles retrieval context for prompt construction.
type ContextBuilder interface {
	// BuildContext retrieves and formats the material most relevant to query
	// within tokenBudget. Runtime failures degrade the result instead of
	// returning an error; see domain.ContextResult.
	BuildContext(ctx context.Context, query string, tokenBudget int, opts domain.BuildOptions) (domain.ContextResult, error)

	// MatchStyleSamples returns the style samples closest to text in prose texture.
	MatchStyleSamples(ctx context.Context, text string, k int, projectID string) ([]domain.RetrievalCandidate, error)
}
