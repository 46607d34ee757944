package retrieval

import (
	"context"

	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/domain/search/filter"
)

// Embedder vectorizes query component text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// TrialSearcher runs a filtered KNN search over the trial index.
type TrialSearcher interface {
	SearchTrials(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]domain.RankedTrial, error)
}
