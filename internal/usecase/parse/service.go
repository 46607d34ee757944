// Package parse turns a free-text patient description into the three
// semantic term lists of a spec via one chat completion. Structured
// fields (age, sex, location) come from the caller, never from the
// model.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// ChatCompleter sends one system+user prompt pair to the LLM.
type ChatCompleter interface {
	Complete(ctx context.Context, task, system, user string) (string, error)
}

// Service parses patient free text into term lists.
type Service struct {
	llm    ChatCompleter
	logger *zap.Logger
}

// New creates a parse service.
func New(llm ChatCompleter, logger *zap.Logger) *Service {
	return &Service{llm: llm, logger: logger}
}

type parsedLists struct {
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
	ExtraTerms  []string `json:"extra_terms"`
}

// Parse returns a spec with the term lists filled in and everything
// else left unconstrained. An empty model response yields an all-empty
// spec; non-JSON output is an error.
func (s *Service) Parse(ctx context.Context, text string) (domain.Spec, error) {
	content, err := s.llm.Complete(ctx, "parse", systemPrompt, text)
	if err != nil {
		return domain.Spec{}, fmt.Errorf("parse completion: %w", err)
	}

	lists, err := coerceLists(content)
	if err != nil {
		s.logger.Warn("Query parser returned malformed content",
			zap.String("content", truncate(content, 200)))
		return domain.Spec{}, err
	}

	spec := domain.Spec{
		Conditions:  lists.Conditions,
		Medications: lists.Medications,
		ExtraTerms:  lists.ExtraTerms,
	}
	spec.Normalize()
	return spec, nil
}

// coerceLists decodes the model output, tolerating code fences and
// surrounding prose: first the raw text, then with fences stripped,
// then the slice between the first "{" and the last "}".
func coerceLists(content string) (parsedLists, error) {
	stripped := strings.TrimSpace(content)
	if stripped == "" {
		return parsedLists{}, nil
	}

	candidates := []string{stripped, stripFences(stripped)}
	if start, end := strings.Index(stripped, "{"), strings.LastIndex(stripped, "}"); start != -1 && end > start {
		candidates = append(candidates, stripped[start:end+1])
	}

	for _, candidate := range candidates {
		var lists parsedLists
		if err := json.Unmarshal([]byte(candidate), &lists); err == nil {
			return lists, nil
		}
	}
	return parsedLists{}, fmt.Errorf("%w: query parser returned non-JSON content", domain.ErrLLMOutput)
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
