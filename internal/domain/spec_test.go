package domain

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestSpecNormalize_TrimsAndDeduplicates(t *testing.T) {
	spec := Spec{
		Sex:        "female",
		Conditions: []string{" nsclc ", "nsclc", "", "egfr+"},
		Location:   &Location{City: " Boston ", Country: " USA"},
	}
	spec.Normalize()

	if spec.Sex != SexFemale {
		t.Errorf("expected FEMALE, got %q", spec.Sex)
	}
	if len(spec.Conditions) != 2 || spec.Conditions[0] != "nsclc" || spec.Conditions[1] != "egfr+" {
		t.Errorf("unexpected conditions: %v", spec.Conditions)
	}
	if spec.Location.City != "Boston" || spec.Location.Country != "USA" {
		t.Errorf("unexpected location: %+v", spec.Location)
	}
}

func TestSpecNormalize_DropsEmptyLocation(t *testing.T) {
	spec := Spec{Location: &Location{City: "  "}}
	spec.Normalize()
	if spec.Location != nil {
		t.Errorf("expected nil location, got %+v", spec.Location)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"empty spec is valid", Spec{}, false},
		{"valid full spec", Spec{Age: intPtr(30), Sex: SexMale}, false},
		{"zero age is valid", Spec{Age: intPtr(0)}, false},
		{"negative age", Spec{Age: intPtr(-1)}, true},
		{"unknown sex", Spec{Sex: "OTHER"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSpec) {
					t.Errorf("expected ErrInvalidSpec, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
