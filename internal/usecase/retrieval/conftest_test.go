package retrieval

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/domain/search/filter"
)

// mockEmbedder returns a fixed vector per text. Embed is called
// concurrently by the combiner, so call tracking is mutex-guarded.
type mockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if vec, ok := m.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: vec, TotalTokens: 3}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 1}, TotalTokens: 3}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSearcher struct {
	searchFn func(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]domain.RankedTrial, error)
}

func (m *mockSearcher) SearchTrials(
	ctx context.Context, vector []float32, filters filter.Expression, k int,
) ([]domain.RankedTrial, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, filters, k)
	}
	return nil, nil
}

func newTestService(t *testing.T, embed *mockEmbedder, searcher *mockSearcher) *Service {
	t.Helper()
	if embed.vectors == nil {
		embed.vectors = map[string][]float32{}
	}
	return New(embed, searcher, Options{DefaultMaxTrials: 10, MaxMaxTrials: 100}, zap.NewNop())
}

func intPtr(v int) *int { return &v }
