package chi

import (
	"context"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
	healthuc "github.com/trialmatch/trialmatch/internal/usecase/health"
)

// --- Mocks ---

type mockParser struct {
	spec domain.Spec
	err  error
	text string
}

func (m *mockParser) Parse(_ context.Context, text string) (domain.Spec, error) {
	m.text = text
	return m.spec, m.err
}

type mockRetriever struct {
	bundles   []domain.TrialBundle
	err       error
	gotSpec   domain.Spec
	gotMax    int
	callCount int
}

func (m *mockRetriever) Retrieve(_ context.Context, spec domain.Spec, maxTrials int) ([]domain.TrialBundle, error) {
	m.gotSpec = spec
	m.gotMax = maxTrials
	m.callCount++
	return m.bundles, m.err
}

type mockJudge struct {
	verdicts  []domain.Verdict
	err       error
	callCount int
}

func (m *mockJudge) Judge(_ context.Context, _ domain.Spec, _ []domain.TrialBundle) ([]domain.Verdict, error) {
	m.callCount++
	return m.verdicts, m.err
}

type mockFacets struct {
	facets       domain.LocationFacets
	err          error
	refreshCount int
}

func (m *mockFacets) Facets(_ context.Context) (domain.LocationFacets, error) {
	return m.facets, m.err
}

func (m *mockFacets) Refresh(_ context.Context) (domain.LocationFacets, error) {
	m.refreshCount++
	return m.facets, m.err
}

type mockTrialStore struct {
	trial   domain.Trial
	err     error
	delErr  error
	deleted []string
}

func (m *mockTrialStore) Get(_ context.Context, _ string) (domain.Trial, error) {
	return m.trial, m.err
}

func (m *mockTrialStore) Delete(_ context.Context, nctID string) error {
	if m.delErr != nil {
		return m.delErr
	}
	m.deleted = append(m.deleted, nctID)
	return nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type testServer struct {
	parser    *mockParser
	retriever *mockRetriever
	judge     *mockJudge
	facets    *mockFacets
	trials    *mockTrialStore
	health    *mockHealth
	http      *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		parser:    &mockParser{},
		retriever: &mockRetriever{},
		judge:     &mockJudge{},
		facets:    &mockFacets{},
		trials:    &mockTrialStore{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
	}
	srv := NewServer(ts.parser, ts.retriever, ts.judge, ts.facets, ts.trials, ts.health, zap.NewNop())
	r := chirouter.NewRouter()
	srv.RegisterRoutes(r)
	ts.http = httptest.NewServer(r)
	t.Cleanup(ts.http.Close)
	return ts
}
