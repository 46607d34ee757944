package facets

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
)

type mockScanner struct {
	pages  [][]domain.Trial
	calls  int
	scanFn func(ctx context.Context, cursor uint64, count int) ([]domain.Trial, uint64, error)
}

func (m *mockScanner) ScanPage(ctx context.Context, cursor uint64, count int) ([]domain.Trial, uint64, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, cursor, count)
	}
	page := m.pages[cursor]
	m.calls++
	next := cursor + 1
	if int(next) >= len(m.pages) {
		next = 0
	}
	return page, next, nil
}

func trialAt(city, state, country string) domain.Trial {
	return domain.Trial{
		NCTID:     "NCT00000000",
		Locations: []domain.TrialLocation{{City: city, State: state, Country: country}},
	}
}

func TestFacets_AccumulatesAndSorts(t *testing.T) {
	scanner := &mockScanner{pages: [][]domain.Trial{
		{trialAt("Boston", "MA", "USA")},
		{trialAt("", "ny", "usa"), trialAt("Toronto", "", "CA")},
	}}
	s := New(scanner, 10, zap.NewNop())

	f, err := s.Facets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCountries := []string{"ca", "usa"}
	if len(f.Countries) != 2 || f.Countries[0] != wantCountries[0] || f.Countries[1] != wantCountries[1] {
		t.Errorf("countries = %v, want %v", f.Countries, wantCountries)
	}

	usStates := f.StatesByCountry["usa"]
	if len(usStates) != 2 || usStates[0] != "ma" || usStates[1] != "ny" {
		t.Errorf("states[usa] = %v, want [ma ny]", usStates)
	}

	maCities := f.CitiesByRegion[domain.Region{Country: "usa", State: "ma"}]
	if len(maCities) != 1 || maCities[0] != "boston" {
		t.Errorf("cities[usa/ma] = %v, want [boston]", maCities)
	}

	// City with a country but no state lands under (country, "").
	caCities := f.CitiesByRegion[domain.Region{Country: "ca", State: ""}]
	if len(caCities) != 1 || caCities[0] != "toronto" {
		t.Errorf("cities[ca/] = %v, want [toronto]", caCities)
	}

	if scanner.calls != 2 {
		t.Errorf("expected scan to page to cursor exhaustion, got %d pages", scanner.calls)
	}
}

func TestFacets_CachesAcrossCalls(t *testing.T) {
	scanner := &mockScanner{pages: [][]domain.Trial{
		{trialAt("Boston", "MA", "USA")},
	}}
	s := New(scanner, 10, zap.NewNop())

	if _, err := s.Facets(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Facets(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scanner.calls != 1 {
		t.Errorf("second call must hit the cache, got %d scans", scanner.calls)
	}

	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scanner.calls != 2 {
		t.Errorf("refresh must rescan, got %d scans", scanner.calls)
	}
}

func TestFacets_IgnoresCountrylessLocations(t *testing.T) {
	scanner := &mockScanner{pages: [][]domain.Trial{
		{trialAt("Somewhere", "XX", "")},
	}}
	s := New(scanner, 10, zap.NewNop())

	f, err := s.Facets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Countries) != 0 || len(f.CitiesByRegion) != 0 {
		t.Errorf("locations without a country must be skipped: %+v", f)
	}
}

func TestFacets_ScanError(t *testing.T) {
	scanner := &mockScanner{}
	scanner.scanFn = func(_ context.Context, _ uint64, _ int) ([]domain.Trial, uint64, error) {
		return nil, 0, errors.New("connection refused")
	}
	s := New(scanner, 10, zap.NewNop())

	if _, err := s.Facets(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
