// Package facets builds the sorted location facet lists that populate
// cascading filter controls. Building is a full index scan, so the
// result is cached in-process and rebuilt only on explicit refresh,
// never on the per-query path.
package facets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// TrialScanner pages through every indexed trial. The cursor is an
// opaque continuation token; zero both starts and ends a scan.
type TrialScanner interface {
	ScanPage(ctx context.Context, cursor uint64, count int) ([]domain.Trial, uint64, error)
}

// Service builds and caches location facets.
type Service struct {
	scanner  TrialScanner
	pageSize int
	logger   *zap.Logger

	mu      sync.Mutex
	cached  *domain.LocationFacets
	builtAt time.Time
}

// New creates a facets service.
func New(scanner TrialScanner, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Service{scanner: scanner, pageSize: pageSize, logger: logger}
}

// Facets returns the cached facets, building them on first use.
func (s *Service) Facets(ctx context.Context) (domain.LocationFacets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}
	return s.rebuildLocked(ctx)
}

// Refresh discards the cache and rebuilds from a fresh scan.
func (s *Service) Refresh(ctx context.Context) (domain.LocationFacets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Service) rebuildLocked(ctx context.Context) (domain.LocationFacets, error) {
	start := time.Now()

	facets, trials, err := s.build(ctx)
	if err != nil {
		return domain.LocationFacets{}, err
	}

	s.cached = &facets
	s.builtAt = time.Now()
	s.logger.Info("Built location facets",
		zap.Int("trials", trials),
		zap.Int("countries", len(facets.Countries)),
		zap.Duration("took", time.Since(start)))
	return facets, nil
}

// build scans every trial and accumulates the lower-cased non-empty
// (city, state, country) triples. A city under a country with no state
// lands under the (country, "") region.
func (s *Service) build(ctx context.Context) (domain.LocationFacets, int, error) {
	countries := map[string]bool{}
	states := map[string]map[string]bool{}
	cities := map[domain.Region]map[string]bool{}

	var cursor uint64
	trials := 0
	for {
		page, next, err := s.scanner.ScanPage(ctx, cursor, s.pageSize)
		if err != nil {
			return domain.LocationFacets{}, 0, fmt.Errorf("scan facets: %w", err)
		}

		for _, t := range page {
			trials++
			for _, loc := range t.Locations {
				country := fold(loc.Country)
				state := fold(loc.State)
				city := fold(loc.City)

				if country == "" {
					continue
				}
				countries[country] = true

				if state != "" {
					if states[country] == nil {
						states[country] = map[string]bool{}
					}
					states[country][state] = true
				}

				if city != "" {
					region := domain.Region{Country: country, State: state}
					if cities[region] == nil {
						cities[region] = map[string]bool{}
					}
					cities[region][city] = true
				}
			}
		}

		if next == 0 {
			break
		}
		cursor = next
	}

	return domain.LocationFacets{
		Countries:       sortedKeys(countries),
		StatesByCountry: sortedByKey(states),
		CitiesByRegion:  sortedByRegion(cities),
	}, trials, nil
}

func fold(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedByKey(sets map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(sets))
	for k, set := range sets {
		out[k] = sortedKeys(set)
	}
	return out
}

func sortedByRegion(sets map[domain.Region]map[string]bool) map[domain.Region][]string {
	out := make(map[domain.Region][]string, len(sets))
	for k, set := range sets {
		out[k] = sortedKeys(set)
	}
	return out
}
