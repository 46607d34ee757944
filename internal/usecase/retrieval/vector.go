package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/domain/query"
)

// buildVector produces the combined query vector for a spec.
//
// Qualifying components (non-empty text, positive weight) are embedded
// concurrently, one call each, and recombined by component index, not
// by arrival order. Weights renormalize over the qualifying subset, so
// a lone component comes back as its raw embedding. With nothing to
// weight, the joined query text (or a single space) is embedded as-is.
// The output keeps the model's native dimension; cosine similarity in
// the index makes unit-length normalization unnecessary.
func (s *Service) buildVector(ctx context.Context, spec domain.Spec) ([]float32, error) {
	components := query.Components(spec)

	qualifying := components[:0:0]
	for _, c := range components {
		if c.Text != "" && query.Weights[c.Name] > 0 {
			qualifying = append(qualifying, c)
		}
	}

	if len(qualifying) == 0 {
		text := query.Text(spec)
		if text == "" {
			text = " "
		}
		res, err := s.embed.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query text: %w", err)
		}
		return res.Embedding, nil
	}

	vectors := make([][]float32, len(qualifying))
	errs := make([]error, len(qualifying))

	var wg sync.WaitGroup
	for i, c := range qualifying {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			res, err := s.embed.Embed(ctx, text)
			if err != nil {
				errs[i] = err
				return
			}
			vectors[i] = res.Embedding
		}(i, c.Text)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embed component %s: %w", qualifying[i].Name, err)
		}
	}

	return combine(qualifying, vectors)
}

// combine computes the element-wise weighted sum, with weights
// renormalized to sum to 1 over the present components.
func combine(components []query.Component, vectors [][]float32) ([]float32, error) {
	var total float64
	for _, c := range components {
		total += query.Weights[c.Name]
	}

	dim := len(vectors[0])
	combined := make([]float32, dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("component %s: dimension %d does not match %d",
				components[i].Name, len(vec), dim)
		}
		w := float32(query.Weights[components[i].Name] / total)
		for j, v := range vec {
			combined[j] += w * v
		}
	}
	return combined, nil
}
