// Package chi exposes the retrieval core over HTTP with a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
	healthuc "github.com/trialmatch/trialmatch/internal/usecase/health"
)

// Consumer interfaces over the use case services, for wiring and tests.
type (
	specParser interface {
		Parse(ctx context.Context, text string) (domain.Spec, error)
	}
	trialRetriever interface {
		Retrieve(ctx context.Context, spec domain.Spec, maxTrials int) ([]domain.TrialBundle, error)
	}
	trialJudge interface {
		Judge(ctx context.Context, spec domain.Spec, bundles []domain.TrialBundle) ([]domain.Verdict, error)
	}
	facetProvider interface {
		Facets(ctx context.Context) (domain.LocationFacets, error)
		Refresh(ctx context.Context) (domain.LocationFacets, error)
	}
	trialStore interface {
		Get(ctx context.Context, nctID string) (domain.Trial, error)
		Delete(ctx context.Context, nctID string) error
	}
	healthChecker interface {
		Check(ctx context.Context) healthuc.Report
	}
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest         = "bad_request"
	codeInvalidSpec        = "invalid_spec"
	codeTrialNotFound      = "trial_not_found"
	codeLLMOutput          = "llm_output_error"
	codeServiceUnavailable = "service_unavailable"
	codeTimeout            = "timeout"
	codeInternalError      = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers over the use case services.
type Server struct {
	parser        specParser
	retriever     trialRetriever
	judge         trialJudge
	facets        facetProvider
	trials        trialStore
	health        healthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. The parser and judge are optional;
// without them POST /match is unavailable and only /retrieve works.
func NewServer(
	parser specParser,
	retriever trialRetriever,
	judge trialJudge,
	facets facetProvider,
	trials trialStore,
	health healthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		parser:    parser,
		retriever: retriever,
		judge:     judge,
		facets:    facets,
		trials:    trials,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidSpec, http.StatusBadRequest, codeInvalidSpec),
		sentinelHandler(domain.ErrTrialNotFound, http.StatusNotFound, codeTrialNotFound),
		sentinelHandler(domain.ErrLLMOutput, http.StatusBadGateway, codeLLMOutput),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeServiceUnavailable),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrServiceUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable),
	}
	return s
}

// RegisterRoutes mounts all API routes on the given router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/match", s.Match)
		r.Post("/retrieve", s.Retrieve)
		r.Post("/parse", s.ParseSpec)
		r.Get("/facets", s.Facets)
		r.Get("/trials/{nctID}", s.GetTrial)
		r.Delete("/trials/{nctID}", s.DeleteTrial)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type matchRequest struct {
	Text      string       `json:"text,omitempty"`
	Spec      *domain.Spec `json:"spec,omitempty"`
	MaxTrials int          `json:"max_trials,omitempty"`
}

type matchResponse struct {
	Spec     domain.Spec          `json:"spec"`
	Trials   []domain.TrialBundle `json:"trials"`
	Verdicts []domain.Verdict     `json:"verdicts"`
}

// Match handles POST /api/v1/match: free-text or structured patient
// profile in, retrieved trials plus per-trial eligibility verdicts out.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	hasText := strings.TrimSpace(req.Text) != ""
	if hasText == (req.Spec != nil) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Provide exactly one of text or spec")
		return
	}

	var spec domain.Spec
	if hasText {
		if s.parser == nil {
			writeError(w, http.StatusNotImplemented, codeBadRequest, "Free-text parsing is not configured")
			return
		}
		parsed, err := s.parser.Parse(r.Context(), req.Text)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		spec = parsed
	} else {
		spec = *req.Spec
	}

	bundles, err := s.retriever.Retrieve(r.Context(), spec, req.MaxTrials)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	verdicts := []domain.Verdict{}
	if s.judge != nil {
		verdicts, err = s.judge.Judge(r.Context(), spec, bundles)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, matchResponse{
		Spec:     spec,
		Trials:   bundles,
		Verdicts: verdicts,
	})
}

type retrieveRequest struct {
	Spec      domain.Spec `json:"spec"`
	MaxTrials int         `json:"max_trials,omitempty"`
}

type retrieveResponse struct {
	Trials []domain.TrialBundle `json:"trials"`
	Total  int                  `json:"total"`
}

// Retrieve handles POST /api/v1/retrieve: structured profile in, ranked
// trial bundles out. An empty result is a 200 with an empty list.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	bundles, err := s.retriever.Retrieve(r.Context(), req.Spec, req.MaxTrials)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if bundles == nil {
		bundles = []domain.TrialBundle{}
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Trials: bundles, Total: len(bundles)})
}

type parseRequest struct {
	Text string `json:"text"`
}

// ParseSpec handles POST /api/v1/parse: free text in, structured spec out.
func (s *Server) ParseSpec(w http.ResponseWriter, r *http.Request) {
	if s.parser == nil {
		writeError(w, http.StatusNotImplemented, codeBadRequest, "Free-text parsing is not configured")
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Text is required")
		return
	}

	spec, err := s.parser.Parse(r.Context(), req.Text)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, spec)
}

type facetsResponse struct {
	Countries []string `json:"countries"`
	// States keyed by country; cities keyed by country then state, with
	// "" for cities whose trial record carries no state.
	States map[string][]string            `json:"states"`
	Cities map[string]map[string][]string `json:"cities"`
}

// Facets handles GET /api/v1/facets. ?refresh=true forces a rebuild.
func (s *Server) Facets(w http.ResponseWriter, r *http.Request) {
	var (
		facets domain.LocationFacets
		err    error
	)
	if r.URL.Query().Get("refresh") == "true" {
		facets, err = s.facets.Refresh(r.Context())
	} else {
		facets, err = s.facets.Facets(r.Context())
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, facetsToResponse(facets))
}

func facetsToResponse(f domain.LocationFacets) facetsResponse {
	resp := facetsResponse{
		Countries: f.Countries,
		States:    f.StatesByCountry,
		Cities:    make(map[string]map[string][]string, len(f.CitiesByRegion)),
	}
	if resp.Countries == nil {
		resp.Countries = []string{}
	}
	if resp.States == nil {
		resp.States = map[string][]string{}
	}
	for region, cities := range f.CitiesByRegion {
		byState := resp.Cities[region.Country]
		if byState == nil {
			byState = make(map[string][]string)
			resp.Cities[region.Country] = byState
		}
		byState[region.State] = cities
	}
	return resp
}

// GetTrial handles GET /api/v1/trials/{nctID}.
func (s *Server) GetTrial(w http.ResponseWriter, r *http.Request) {
	nctID := strings.TrimSpace(chi.URLParam(r, "nctID"))
	if nctID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "NCT id is required")
		return
	}

	trial, err := s.trials.Get(r.Context(), nctID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, trial)
}

// DeleteTrial handles DELETE /api/v1/trials/{nctID}. Removing an
// already-absent trial succeeds; the store delete is idempotent.
func (s *Server) DeleteTrial(w http.ResponseWriter, r *http.Request) {
	nctID := strings.TrimSpace(chi.URLParam(r, "nctID"))
	if nctID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "NCT id is required")
		return
	}

	if err := s.trials.Delete(r.Context(), nctID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidSpec,
		domain.ErrTrialNotFound,
		domain.ErrLLMOutput,
		domain.ErrEmbeddingProviderError,
		domain.ErrServiceUnavailable,
		domain.ErrTimeout,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("domain error", zap.String("path", r.URL.Path), zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
