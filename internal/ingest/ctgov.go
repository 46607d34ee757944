// Package ingest streams studies from the ClinicalTrials.gov v2 API,
// normalizes them into trial records, and loads them into the search
// index with one vector per trial.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
)

const (
	// DefaultBaseURL is the public v2 API root.
	DefaultBaseURL = "https://clinicaltrials.gov/api/v2"

	userAgent = "trialmatch/0.1"

	// Only protocolSection plus the condition browse meshes travel
	// over the wire, the rest of the study is dead weight.
	studyFields = "ProtocolSection|derivedSection.conditionBrowseModule.meshes"
)

// CTGovConfig holds the study stream settings.
type CTGovConfig struct {
	BaseURL   string
	PageSize  int
	Statuses  []string // server-side overall status filter
	StartDate string   // YYYY-MM-DD last-update window, optional
	EndDate   string   // YYYY-MM-DD, defaults to today when a window is set
	Timeout   time.Duration
}

// CTGovClient pages through /studies with pageToken continuation.
type CTGovClient struct {
	httpc  *http.Client
	cfg    CTGovConfig
	logger *zap.Logger
}

// NewCTGovClient creates a ClinicalTrials.gov API client.
func NewCTGovClient(cfg CTGovConfig, logger *zap.Logger) *CTGovClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CTGovClient{
		httpc:  &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// studyPage mirrors the slice of the /studies response we consume.
type studyPage struct {
	Studies       []ctgovStudy `json:"studies"`
	NextPageToken string       `json:"nextPageToken"`
}

type ctgovStudy struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID         string `json:"nctId"`
			OfficialTitle string `json:"officialTitle"`
			BriefTitle    string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus string `json:"overallStatus"`
		} `json:"statusModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
		DesignModule struct {
			Phases    []string `json:"phases"`
			StudyType string   `json:"studyType"`
		} `json:"designModule"`
		ArmsInterventionsModule struct {
			Interventions []struct {
				Name string `json:"name"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`
		EligibilityModule struct {
			EligibilityCriteria string `json:"eligibilityCriteria"`
			MinimumAge          string `json:"minimumAge"`
			MaximumAge          string `json:"maximumAge"`
			Sex                 string `json:"sex"`
		} `json:"eligibilityModule"`
		ContactsLocationsModule struct {
			Locations []struct {
				City     string `json:"city"`
				State    string `json:"state"`
				Country  string `json:"country"`
				Status   string `json:"status"`
				GeoPoint struct {
					Lat *float64 `json:"lat"`
					Lon *float64 `json:"lon"`
				} `json:"geoPoint"`
			} `json:"locations"`
		} `json:"contactsLocationsModule"`
	} `json:"protocolSection"`
	DerivedSection struct {
		ConditionBrowseModule struct {
			Meshes []struct {
				Term string `json:"term"`
			} `json:"meshes"`
		} `json:"conditionBrowseModule"`
	} `json:"derivedSection"`
}

// FetchPage fetches and normalizes one page of studies. An empty next
// token means the stream is exhausted. Transient failures (network,
// 429, 5xx) retry with exponential backoff; anything else fails fast.
func (c *CTGovClient) FetchPage(ctx context.Context, pageToken string) ([]domain.Trial, string, error) {
	endpoint, err := c.buildURL(pageToken)
	if err != nil {
		return nil, "", err
	}

	var page studyPage
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("ctgov request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("ctgov status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("ctgov status %d: %s", resp.StatusCode, body))
		}

		page = studyPage{}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return backoff.Permanent(fmt.Errorf("decode studies page: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	notify := func(err error, next time.Duration) {
		c.logger.Warn("CTGov page fetch failed, retrying",
			zap.Error(err), zap.Duration("backoff", next))
	}
	if err := backoff.RetryNotify(operation, bo, notify); err != nil {
		return nil, "", err
	}

	allowed := map[string]bool{}
	for _, s := range c.cfg.Statuses {
		allowed[s] = true
	}

	trials := make([]domain.Trial, 0, len(page.Studies))
	for _, study := range page.Studies {
		t := mapStudy(study)
		if t.NCTID == "" {
			continue
		}
		// Server filters by status already; this guards against drift.
		if len(allowed) > 0 && !allowed[t.OverallStatus] {
			continue
		}
		trials = append(trials, t)
	}
	return trials, page.NextPageToken, nil
}

func (c *CTGovClient) buildURL(pageToken string) (string, error) {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v2") {
		base += "/v2"
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("markupFormat", "markdown")
	params.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	params.Set("fields", studyFields)
	if term := c.lastUpdateTerm(); term != "" {
		params.Set("query.term", term)
	}
	if len(c.cfg.Statuses) > 0 {
		statuses := append([]string(nil), c.cfg.Statuses...)
		sort.Strings(statuses)
		params.Set("filter.overallStatus", strings.Join(statuses, "|"))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	return base + "/studies?" + params.Encode(), nil
}

// lastUpdateTerm renders the Essie last-update window, e.g.
// AREA[LastUpdatePostDate]RANGE[2024-01-01,2024-12-31].
func (c *CTGovClient) lastUpdateTerm() string {
	if c.cfg.StartDate == "" && c.cfg.EndDate == "" {
		return ""
	}
	end := c.cfg.EndDate
	if end == "" {
		end = time.Now().UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("AREA[LastUpdatePostDate]RANGE[%s,%s]", c.cfg.StartDate, end)
}
