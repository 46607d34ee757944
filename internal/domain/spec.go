package domain

import (
	"fmt"
	"strings"
)

// Sex is the patient sex used for gender-compatibility filtering.
type Sex string

const (
	// SexMale matches trials recruiting MALE or ALL.
	SexMale Sex = "MALE"
	// SexFemale matches trials recruiting FEMALE or ALL.
	SexFemale Sex = "FEMALE"
)

// GenderAll is the trial-side value for trials open to any sex.
const GenderAll = "ALL"

// Location is an optional patient location; every part is free text and optional.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Spec is the normalized patient profile driving both filtering and ranking.
// An absent field means "unconstrained", never "excluded".
type Spec struct {
	Age         *int      `json:"age"`
	Sex         Sex       `json:"sex,omitempty"`
	Conditions  []string  `json:"conditions"`
	Medications []string  `json:"medications"`
	ExtraTerms  []string  `json:"extra_terms"`
	Location    *Location `json:"location,omitempty"`
}

// Normalize trims and deduplicates the term lists (preserving order),
// upper-cases sex, and drops an all-empty location.
func (s *Spec) Normalize() {
	s.Conditions = normalizeTerms(s.Conditions)
	s.Medications = normalizeTerms(s.Medications)
	s.ExtraTerms = normalizeTerms(s.ExtraTerms)
	s.Sex = Sex(strings.ToUpper(strings.TrimSpace(string(s.Sex))))
	if s.Location != nil {
		s.Location.City = strings.TrimSpace(s.Location.City)
		s.Location.State = strings.TrimSpace(s.Location.State)
		s.Location.Country = strings.TrimSpace(s.Location.Country)
		if *s.Location == (Location{}) {
			s.Location = nil
		}
	}
}

// Validate rejects a malformed spec. Call after Normalize.
func (s *Spec) Validate() error {
	if s.Age != nil && *s.Age < 0 {
		return fmt.Errorf("%w: age must be non-negative, got %d", ErrInvalidSpec, *s.Age)
	}
	switch s.Sex {
	case "", SexMale, SexFemale:
	default:
		return fmt.Errorf("%w: sex must be MALE or FEMALE, got %q", ErrInvalidSpec, s.Sex)
	}
	return nil
}

func normalizeTerms(terms []string) []string {
	if len(terms) == 0 {
		return terms
	}
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		out = append(out, t)
		seen[t] = true
	}
	return out
}
