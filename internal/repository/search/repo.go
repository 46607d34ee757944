// Package search adapts FT.SEARCH KNN results into ranked trials.
package search

import (
	"context"
	"fmt"

	"github.com/trialmatch/trialmatch/internal/db"
	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/domain/search/filter"
	"github.com/trialmatch/trialmatch/internal/repository/trial"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the vector search port of the retrieval usecase.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchTrials runs a filtered KNN search and returns up to k trials
// ranked by similarity. Only the payload travels back from the index;
// vectors stay server-side to keep responses small.
func (r *Repo) SearchTrials(
	ctx context.Context, vector []float32, filters filter.Expression, k int,
) ([]domain.RankedTrial, error) {
	q := &db.KNNQuery{
		IndexName:    trial.IndexName(),
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{trial.FieldPayload, "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search trials: %w", err)
	}

	ranked := make([]domain.RankedTrial, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		payload := entry.Fields[trial.FieldPayload]
		if payload == "" {
			continue
		}
		t, err := trial.ParsePayload(payload)
		if err != nil {
			continue
		}
		ranked = append(ranked, domain.RankedTrial{Trial: t, Score: entry.Score})
	}
	return ranked, nil
}
