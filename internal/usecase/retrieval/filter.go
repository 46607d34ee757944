package retrieval

import (
	"fmt"
	"strings"

	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/domain/search/filter"
)

// buildFilter turns a spec into the index filter conjunction.
//
// Sex becomes a should group (trial recruits that sex OR ALL). Age
// becomes min_age <= age; trials without a stated floor are indexed
// with a sentinel below zero, so they always pass. Location parts
// become exact tag matches on the lower-cased facet lists. Max-age is
// deliberately absent: the index cannot express "null or <= bound"
// safely, so it is enforced client-side after the search.
//
// A spec with no constraints yields an empty expression, which means
// "match everything".
func buildFilter(spec domain.Spec) (filter.Expression, error) {
	var must, should []filter.Condition

	if spec.Sex == domain.SexMale || spec.Sex == domain.SexFemale {
		own, err := filter.NewMatch("gender", string(spec.Sex))
		if err != nil {
			return filter.Expression{}, fmt.Errorf("gender filter: %w", err)
		}
		all, err := filter.NewMatch("gender", domain.GenderAll)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("gender filter: %w", err)
		}
		should = append(should, own, all)
	}

	if spec.Age != nil {
		lte := float64(*spec.Age)
		r, err := filter.NewRangeFilter(nil, nil, nil, &lte)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("age filter: %w", err)
		}
		cond, err := filter.NewRange("min_age", r)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("age filter: %w", err)
		}
		must = append(must, cond)
	}

	if spec.Location != nil {
		parts := []struct {
			field string
			value string
		}{
			{"location_cities", spec.Location.City},
			{"location_states", spec.Location.State},
			{"location_countries", spec.Location.Country},
		}
		for _, p := range parts {
			value := strings.ToLower(strings.TrimSpace(p.value))
			if value == "" {
				continue
			}
			cond, err := filter.NewMatch(p.field, value)
			if err != nil {
				return filter.Expression{}, fmt.Errorf("location filter: %w", err)
			}
			must = append(must, cond)
		}
	}

	return filter.NewExpression(must, should)
}
