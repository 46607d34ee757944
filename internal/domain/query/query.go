// Package query renders a patient spec into embeddable text. Components
// keep their insertion order so the weighted combiner can recombine
// per-component vectors deterministically.
package query

import (
	"strconv"
	"strings"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// Component names. Weights reference components by these names.
const (
	ComponentConditions  = "conditions"
	ComponentMedications = "medications"
	ComponentExtraTerms  = "extra_terms"
	ComponentSex         = "sex"
)

// Component is one named fragment of query text.
type Component struct {
	Name string
	Text string
}

// Weights assigns each component its share of the combined query vector.
// Sex carries no semantic signal, it is handled by structured filtering.
var Weights = map[string]float64{
	ComponentConditions:  0.50,
	ComponentMedications: 0.25,
	ComponentExtraTerms:  0.25,
	ComponentSex:         0.0,
}

// Components renders the non-empty spec fields into ordered named fragments.
// Empty fields are omitted entirely, never rendered as empty fragments.
func Components(spec domain.Spec) []Component {
	parts := make([]Component, 0, 4)
	if len(spec.Conditions) > 0 {
		parts = append(parts, Component{ComponentConditions, "conditions:" + strings.Join(spec.Conditions, ", ")})
	}
	if len(spec.Medications) > 0 {
		parts = append(parts, Component{ComponentMedications, "meds:" + strings.Join(spec.Medications, ", ")})
	}
	if len(spec.ExtraTerms) > 0 {
		parts = append(parts, Component{ComponentExtraTerms, "context:" + strings.Join(spec.ExtraTerms, ", ")})
	}
	if spec.Sex != "" {
		parts = append(parts, Component{ComponentSex, "sex:" + string(spec.Sex)})
	}
	return parts
}

// Text joins every renderable spec field into one deterministic query
// string, in fixed field order. Identical specs always produce
// byte-identical output.
func Text(spec domain.Spec) string {
	fragments := make([]string, 0, 6)
	if spec.Age != nil {
		fragments = append(fragments, "age:"+strconv.Itoa(*spec.Age))
	}
	if spec.Sex != "" {
		fragments = append(fragments, "sex:"+string(spec.Sex))
	}
	if len(spec.Conditions) > 0 {
		fragments = append(fragments, "conditions:"+strings.Join(spec.Conditions, ", "))
	}
	if len(spec.Medications) > 0 {
		fragments = append(fragments, "meds:"+strings.Join(spec.Medications, ", "))
	}
	if len(spec.ExtraTerms) > 0 {
		fragments = append(fragments, "context:"+strings.Join(spec.ExtraTerms, ", "))
	}
	if loc := locationFragment(spec.Location); loc != "" {
		fragments = append(fragments, loc)
	}
	return strings.Join(fragments, " ")
}

func locationFragment(loc *domain.Location) string {
	if loc == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, loc.State, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "location:" + strings.Join(parts, ", ")
}
