package embcache

import (
	"context"
	"errors"
	"testing"

	"github.com/trialmatch/trialmatch/internal/db"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{}
	inner.result.Embedding = []float32{0.1, 0.2, 0.3}
	inner.result.TotalTokens = 7

	ce, ms := newTestCachedEmbedder(t, inner)

	var storedKey string
	var storedValue []byte
	ms.setFn = func(_ context.Context, key string, value []byte) error {
		storedKey = key
		storedValue = value
		return nil
	}

	res, err := ce.Embed(context.Background(), "breast cancer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalTokens != 7 {
		t.Errorf("tokens = %d, want 7", res.TotalTokens)
	}
	if len(res.Embedding) != 3 {
		t.Errorf("embedding len = %d", len(res.Embedding))
	}
	if storedKey == "" {
		t.Error("expected cache write after miss")
	}
	if len(storedValue) != 12 {
		t.Errorf("stored %d bytes, want 12", len(storedValue))
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("inner must not be called")}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	res, err := ce.Embed(context.Background(), "breast cancer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalTokens != 0 {
		t.Errorf("hit tokens = %d, want 0", res.TotalTokens)
	}
	if len(res.Embedding) != 2 || res.Embedding[0] != 0.5 {
		t.Errorf("unexpected embedding: %v", res.Embedding)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, _ := newTestCachedEmbedder(t, inner)

	if _, err := ce.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBatchEmbed_AllMisses(t *testing.T) {
	inner := &mockEmbedder{}
	inner.batchResult.Embeddings = [][]float32{{0.1}, {0.2}, {0.3}}
	inner.batchResult.TotalTokens = 9

	ce, ms := newTestCachedEmbedder(t, inner)

	writes := 0
	ms.setFn = func(_ context.Context, _ string, _ []byte) error {
		writes++
		return nil
	}

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("embeddings = %d, want 3", len(res.Embeddings))
	}
	if res.TotalTokens != 9 {
		t.Errorf("tokens = %d, want 9", res.TotalTokens)
	}
	if inner.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", inner.batchCalls)
	}
	if writes != 3 {
		t.Errorf("cache writes = %d, want 3", writes)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("inner must not be called")}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{1.0})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("embeddings = %d, want 2", len(res.Embeddings))
	}
	if res.TotalTokens != 0 {
		t.Errorf("tokens = %d, want 0 for all-hits", res.TotalTokens)
	}
	if inner.batchCalls != 0 {
		t.Errorf("batch calls = %d, want 0", inner.batchCalls)
	}
}

func TestBatchEmbed_MixedHitsMisses(t *testing.T) {
	inner := &mockEmbedder{}
	inner.batchResult.Embeddings = [][]float32{{0.9}}
	inner.batchResult.TotalTokens = 4

	ce, ms := newTestCachedEmbedder(t, inner)

	// Only "a" is cached.
	cachedA := vectorToCacheBytes([]float32{0.5})
	ce0 := ce.cacheKey("a")
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key == ce0 {
			return cachedA, nil
		}
		return nil, db.ErrKeyNotFound
	}

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings[0][0] != 0.5 {
		t.Errorf("cached slot = %v, want 0.5", res.Embeddings[0])
	}
	if res.Embeddings[1][0] != 0.9 {
		t.Errorf("miss slot = %v, want 0.9", res.Embeddings[1])
	}
	if res.TotalTokens != 4 {
		t.Errorf("tokens = %d, want 4 (misses only)", res.TotalTokens)
	}
	if inner.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", inner.batchCalls)
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("provider down")}
	ce, _ := newTestCachedEmbedder(t, inner)

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 {
		t.Errorf("embeddings = %d, want 0", len(res.Embeddings))
	}
	if inner.batchCalls != 0 {
		t.Errorf("batch calls = %d, want 0", inner.batchCalls)
	}
}
