// Package retrieval is the query-time core: spec in, ranked evidence
// bundles out. It builds the index filter and the weighted query
// vector, runs the KNN search, applies the client-side max-age check,
// and bundles each hit's eligibility criteria for the judge.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/metrics"
)

// Options bound the per-request result count.
type Options struct {
	DefaultMaxTrials int
	MaxMaxTrials     int
}

// Service executes trial retrieval for one spec per call. The embedder
// and searcher handles are built once at startup and shared across
// requests.
type Service struct {
	embed    Embedder
	searcher TrialSearcher
	opts     Options
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, searcher TrialSearcher, opts Options, logger *zap.Logger) *Service {
	if opts.DefaultMaxTrials <= 0 {
		opts.DefaultMaxTrials = 10
	}
	if opts.MaxMaxTrials <= 0 {
		opts.MaxMaxTrials = 100
	}
	return &Service{embed: embed, searcher: searcher, opts: opts, logger: logger}
}

// Retrieve returns up to maxTrials evidence bundles ranked by
// similarity. maxTrials <= 0 means the configured default. An empty
// result is a valid outcome, never an error.
func (s *Service) Retrieve(ctx context.Context, spec domain.Spec, maxTrials int) ([]domain.TrialBundle, error) {
	start := time.Now()

	bundles, err := s.retrieve(ctx, spec, maxTrials)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(status).Inc()
	metrics.RetrievalDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.RetrievalResultsCount.Observe(float64(len(bundles)))
	}

	return bundles, err
}

func (s *Service) retrieve(ctx context.Context, spec domain.Spec, maxTrials int) ([]domain.TrialBundle, error) {
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	k := maxTrials
	if k <= 0 {
		k = s.opts.DefaultMaxTrials
	}
	if k > s.opts.MaxMaxTrials {
		k = s.opts.MaxMaxTrials
	}

	filters, err := buildFilter(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSpec, err)
	}

	vector, err := s.buildVector(ctx, spec)
	if err != nil {
		return nil, mapBackendErr(err)
	}

	ranked, err := s.searcher.SearchTrials(ctx, vector, filters, k)
	if err != nil {
		return nil, mapBackendErr(err)
	}

	ranked = postFilterMaxAge(ranked, spec.Age)

	s.logger.Debug("Retrieved trials",
		zap.Int("requested", k),
		zap.Int("returned", len(ranked)))

	return buildBundles(ranked), nil
}

// postFilterMaxAge drops trials whose stated max_age is below the
// patient age. The index filter cannot express "null or >= age", so
// the check runs here. The result set may shrink below maxTrials;
// there is no over-fetch to compensate.
func postFilterMaxAge(ranked []domain.RankedTrial, age *int) []domain.RankedTrial {
	if age == nil {
		return ranked
	}
	kept := ranked[:0]
	for _, hit := range ranked {
		if hit.Trial.MaxAge != nil && *hit.Trial.MaxAge < *age {
			continue
		}
		kept = append(kept, hit)
	}
	return kept
}

// mapBackendErr classifies embedding and index failures: deadline
// expiry is a Timeout, everything else a ServiceUnavailable. Spec
// validation errors pass through untouched.
func mapBackendErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidSpec):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
}
