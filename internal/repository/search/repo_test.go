package search

import (
	"context"
	"errors"
	"testing"

	"github.com/trialmatch/trialmatch/internal/db"
	"github.com/trialmatch/trialmatch/internal/domain/search/filter"
	"github.com/trialmatch/trialmatch/internal/repository/trial"
)

type mockStore struct {
	searchKNNFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func TestSearchTrials(t *testing.T) {
	ms := &mockStore{}
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != trial.IndexName() {
			t.Errorf("index = %q", q.IndexName)
		}
		if q.K != 5 {
			t.Errorf("k = %d", q.K)
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{
					Key:    "trialmatch:trial:NCT00000001",
					Score:  0.92,
					Fields: map[string]string{trial.FieldPayload: `{"nct_id":"NCT00000001","trial_title":"Trial A"}`},
				},
				{
					Key:    "trialmatch:trial:NCT00000002",
					Score:  0.85,
					Fields: map[string]string{trial.FieldPayload: `{"nct_id":"NCT00000002","trial_title":"Trial B"}`},
				},
			},
		}, nil
	}

	repo := New(ms)
	ranked, err := repo.SearchTrials(context.Background(), []float32{0.1, 0.2}, filter.Expression{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(ranked))
	}
	if ranked[0].Trial.NCTID != "NCT00000001" || ranked[0].Score != 0.92 {
		t.Errorf("unexpected first hit: %+v", ranked[0])
	}
	if ranked[1].Trial.NCTID != "NCT00000002" {
		t.Errorf("unexpected second hit: %+v", ranked[1])
	}
}

func TestSearchTrials_SkipsBrokenPayloads(t *testing.T) {
	ms := &mockStore{}
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return &db.SearchResult{
			Total: 3,
			Entries: []db.SearchEntry{
				{Key: "k1", Fields: map[string]string{trial.FieldPayload: "not json"}},
				{Key: "k2", Fields: map[string]string{}},
				{Key: "k3", Fields: map[string]string{trial.FieldPayload: `{"nct_id":"NCT00000003"}`}},
			},
		}, nil
	}

	repo := New(ms)
	ranked, err := repo.SearchTrials(context.Background(), []float32{0.1}, filter.Expression{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Trial.NCTID != "NCT00000003" {
		t.Errorf("unexpected ranked: %v", ranked)
	}
}

func TestSearchTrials_StoreError(t *testing.T) {
	ms := &mockStore{}
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("connection refused")
	}

	repo := New(ms)
	if _, err := repo.SearchTrials(context.Background(), []float32{0.1}, filter.Expression{}, 10); err == nil {
		t.Fatal("expected error")
	}
}
