// Package judge pre-screens retrieved trials against the patient spec
// with one chat completion over all bundles at once. Verdicts are
// advisory: POSSIBLY ELIGIBLE unless the spec explicitly contradicts a
// criterion.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// Default caps on how many criteria travel to the model per trial.
const (
	defaultMaxInclusion = 40
	defaultMaxExclusion = 40
)

// ChatCompleter sends one system+user prompt pair to the LLM.
type ChatCompleter interface {
	Complete(ctx context.Context, task, system, user string) (string, error)
}

// Service judges bundles against a spec.
type Service struct {
	llm     ChatCompleter
	maxIncl int
	maxExcl int
	logger  *zap.Logger
}

// New creates a judge service.
func New(llm ChatCompleter, logger *zap.Logger) *Service {
	return &Service{
		llm:     llm,
		maxIncl: defaultMaxInclusion,
		maxExcl: defaultMaxExclusion,
		logger:  logger,
	}
}

// Judge returns one verdict per bundle-referenced trial, as reported
// by the model. No bundles means no verdicts and no model call.
func (s *Service) Judge(ctx context.Context, spec domain.Spec, bundles []domain.TrialBundle) ([]domain.Verdict, error) {
	if len(bundles) == 0 {
		return []domain.Verdict{}, nil
	}

	user, err := buildUserContent(spec, bundles, s.maxIncl, s.maxExcl)
	if err != nil {
		return nil, err
	}

	content, err := s.llm.Complete(ctx, "judge", systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("judge completion: %w", err)
	}

	verdicts, err := coerceVerdicts(content)
	if err != nil {
		s.logger.Warn("Judge returned malformed content",
			zap.String("content", truncate(content, 200)))
		return nil, err
	}
	return verdicts, nil
}

// buildUserContent renders the spec JSON plus per-trial evidence
// blocks. Each criterion line carries its evidence id so explanations
// can cite it.
func buildUserContent(spec domain.Spec, bundles []domain.TrialBundle, maxIncl, maxExcl int) (string, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("marshal spec: %w", err)
	}

	var b strings.Builder
	b.WriteString("Patient spec JSON:\n")
	b.Write(specJSON)
	b.WriteString("\n\n")

	for _, bundle := range bundles {
		b.WriteString("TRIAL: " + bundle.NCTID + "\n")
		b.WriteString("Inclusion bullets:\n")
		writeEvidence(&b, bundle.Inclusion, maxIncl)
		b.WriteString("Exclusion bullets:\n")
		writeEvidence(&b, bundle.Exclusion, maxExcl)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func writeEvidence(b *strings.Builder, items []domain.Evidence, limit int) {
	if len(items) > limit {
		items = items[:limit]
	}
	for _, item := range items {
		text := ""
		if item.Text != nil {
			text = *item.Text
		}
		b.WriteString("- [" + item.ID + "] " + text + "\n")
	}
}

type rawVerdict struct {
	NCTID       string          `json:"nct_id"`
	Eligibility string          `json:"eligibility"`
	Explanation json.RawMessage `json:"explanation"`
}

// coerceVerdicts decodes the model's array, tolerating fences and
// surrounding prose, and normalizes each verdict: anything other than
// an explicit INELIGIBLE becomes POSSIBLY ELIGIBLE, and non-string
// explanations are stringified.
func coerceVerdicts(content string) ([]domain.Verdict, error) {
	stripped := strings.TrimSpace(content)

	candidates := []string{stripped, stripFences(stripped)}
	if start, end := strings.Index(stripped, "["), strings.LastIndex(stripped, "]"); start != -1 && end > start {
		candidates = append(candidates, stripped[start:end+1])
	}

	var raw []rawVerdict
	decoded := false
	for _, candidate := range candidates {
		if json.Unmarshal([]byte(candidate), &raw) == nil {
			decoded = true
			break
		}
	}
	if !decoded {
		return nil, fmt.Errorf("%w: judge returned non-JSON content", domain.ErrLLMOutput)
	}

	verdicts := make([]domain.Verdict, 0, len(raw))
	for _, r := range raw {
		eligibility := domain.EligibilityPossible
		if strings.ToUpper(strings.TrimSpace(r.Eligibility)) == string(domain.EligibilityIneligible) {
			eligibility = domain.EligibilityIneligible
		}
		verdicts = append(verdicts, domain.Verdict{
			NCTID:       r.NCTID,
			Eligibility: eligibility,
			Explanation: explanationString(r.Explanation),
		})
	}
	return verdicts, nil
}

func explanationString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
