package ingest

import (
	"reflect"
	"testing"

	"github.com/trialmatch/trialmatch/internal/domain"
)

func TestAgeToYears(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	tests := []struct {
		in   string
		want *int
	}{
		{"65 Years", intPtr(65)},
		{"18 Years", intPtr(18)},
		{"6 Months", intPtr(1)},
		{"4 Months", intPtr(0)},
		{"26 Weeks", intPtr(1)},
		{"30 Days", intPtr(0)},
		{"40", intPtr(40)},
		{"  12 years  ", intPtr(12)},
		{"N/A", nil},
		{"n/a", nil},
		{"", nil},
		{"unknown", nil},
		{"5 fortnights", nil},
	}
	for _, tc := range tests {
		got := ageToYears(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ageToYears(%q) = %d, want nil", tc.in, *got)
		case tc.want != nil && got == nil:
			t.Errorf("ageToYears(%q) = nil, want %d", tc.in, *tc.want)
		case tc.want != nil && got != nil && *got != *tc.want:
			t.Errorf("ageToYears(%q) = %d, want %d", tc.in, *got, *tc.want)
		}
	}
}

func TestSplitCriteria(t *testing.T) {
	md := "Inclusion Criteria:\n\n" +
		"* Age 18 or older\n" +
		"* Histologically confirmed diagnosis\n\n" +
		"Exclusion Criteria:\n\n" +
		"* Prior chemotherapy\n" +
		"- Pregnancy\n"

	incl, excl := splitCriteria(md)

	wantIncl := []string{"Age 18 or older", "Histologically confirmed diagnosis"}
	if !reflect.DeepEqual(incl, wantIncl) {
		t.Errorf("inclusion = %v, want %v", incl, wantIncl)
	}
	wantExcl := []string{"Prior chemotherapy", "Pregnancy"}
	if !reflect.DeepEqual(excl, wantExcl) {
		t.Errorf("exclusion = %v, want %v", excl, wantExcl)
	}
}

func TestSplitCriteria_InclusionOnly(t *testing.T) {
	md := "Inclusion criteria\n1. Adults with type 2 diabetes\n2. HbA1c above 7%\n"

	incl, excl := splitCriteria(md)

	if len(incl) != 2 {
		t.Fatalf("expected 2 inclusion bullets, got %v", incl)
	}
	if incl[0] != "Adults with type 2 diabetes" {
		t.Errorf("unexpected first bullet: %q", incl[0])
	}
	if excl != nil {
		t.Errorf("expected no exclusion bullets, got %v", excl)
	}
}

func TestSplitCriteria_NoHeadings(t *testing.T) {
	incl, excl := splitCriteria("- Must be ambulatory\n- Able to consent\n")

	if len(incl) != 2 {
		t.Errorf("headingless bullets should count as inclusion, got %v", incl)
	}
	if excl != nil {
		t.Errorf("expected no exclusion bullets, got %v", excl)
	}
}

func TestSplitCriteria_Empty(t *testing.T) {
	incl, excl := splitCriteria("")
	if incl != nil || excl != nil {
		t.Errorf("expected nil, nil for empty markdown, got %v / %v", incl, excl)
	}
}

func TestLowerUnique(t *testing.T) {
	got := lowerUnique([]string{"Boston", " boston ", "", "New York", "BOSTON"})
	want := []string{"boston", "new york"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lowerUnique = %v, want %v", got, want)
	}
}

func TestEmbeddingText(t *testing.T) {
	trial := domain.Trial{
		Title:         "A Phase 2 Study of Something",
		Conditions:    []string{"Breast Cancer", "HER2 Positive", "Metastatic", "Fourth"},
		Interventions: []string{"Trastuzumab"},
	}

	got := embeddingText(&trial)
	want := "A Phase 2 Study of Something\n\n" +
		"conditions: Breast Cancer, HER2 Positive, Metastatic\n\n" +
		"interventions: Trastuzumab"
	if got != want {
		t.Errorf("embeddingText = %q, want %q", got, want)
	}
}

func TestEmbeddingText_TitleOnly(t *testing.T) {
	trial := domain.Trial{Title: "Observational Registry"}
	if got := embeddingText(&trial); got != "Observational Registry" {
		t.Errorf("embeddingText = %q", got)
	}
}

func TestMapStudy(t *testing.T) {
	var study ctgovStudy
	ps := &study.ProtocolSection
	ps.IdentificationModule.NCTID = "NCT01234567"
	ps.IdentificationModule.BriefTitle = "Brief"
	ps.StatusModule.OverallStatus = "RECRUITING"
	ps.ConditionsModule.Conditions = []string{"Melanoma"}
	ps.DesignModule.Phases = []string{"PHASE2", "PHASE3"}
	ps.DesignModule.StudyType = "INTERVENTIONAL"
	ps.ArmsInterventionsModule.Interventions = []struct {
		Name string `json:"name"`
	}{{Name: "Nivolumab"}, {Name: ""}}
	ps.EligibilityModule.EligibilityCriteria = "Inclusion Criteria:\n* Adults\nExclusion Criteria:\n* Pregnancy\n"
	ps.EligibilityModule.MinimumAge = "18 Years"
	ps.EligibilityModule.MaximumAge = "N/A"
	ps.EligibilityModule.Sex = "ALL"
	study.DerivedSection.ConditionBrowseModule.Meshes = []struct {
		Term string `json:"term"`
	}{{Term: "Melanoma"}}

	lat, lon := 42.36, -71.05
	ps.ContactsLocationsModule.Locations = []struct {
		City     string `json:"city"`
		State    string `json:"state"`
		Country  string `json:"country"`
		Status   string `json:"status"`
		GeoPoint struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"geoPoint"`
	}{
		{City: "Boston", State: "Massachusetts", Country: "United States"},
		{City: "Boston", State: "Massachusetts", Country: "United States"},
	}
	ps.ContactsLocationsModule.Locations[0].GeoPoint.Lat = &lat
	ps.ContactsLocationsModule.Locations[0].GeoPoint.Lon = &lon

	got := mapStudy(study)

	if got.NCTID != "NCT01234567" {
		t.Errorf("NCTID = %q", got.NCTID)
	}
	if got.Title != "Brief" {
		t.Errorf("brief title should back up the missing official title, got %q", got.Title)
	}
	if got.Phase != "PHASE2" {
		t.Errorf("Phase = %q, want first phase", got.Phase)
	}
	if got.MinAge == nil || *got.MinAge != 18 {
		t.Errorf("MinAge = %v, want 18", got.MinAge)
	}
	if got.MaxAge != nil {
		t.Errorf("MaxAge = %v, want nil for N/A", got.MaxAge)
	}
	if !reflect.DeepEqual(got.Interventions, []string{"Nivolumab"}) {
		t.Errorf("Interventions = %v", got.Interventions)
	}
	if !reflect.DeepEqual(got.LocationCities, []string{"boston"}) {
		t.Errorf("LocationCities = %v, want deduplicated lowercase", got.LocationCities)
	}
	if !reflect.DeepEqual(got.LocationCountries, []string{"united states"}) {
		t.Errorf("LocationCountries = %v", got.LocationCountries)
	}
	if len(got.Locations) != 2 {
		t.Errorf("Locations len = %d, want raw list preserved", len(got.Locations))
	}
	if got.Locations[0].Lat == nil || *got.Locations[0].Lat != 42.36 {
		t.Errorf("Lat = %v", got.Locations[0].Lat)
	}
	if got.URL != "https://clinicaltrials.gov/study/NCT01234567" {
		t.Errorf("URL = %q", got.URL)
	}
	if !reflect.DeepEqual(got.InclusionCriteria, []string{"Adults"}) {
		t.Errorf("InclusionCriteria = %v", got.InclusionCriteria)
	}
	if !reflect.DeepEqual(got.ExclusionCriteria, []string{"Pregnancy"}) {
		t.Errorf("ExclusionCriteria = %v", got.ExclusionCriteria)
	}
	if got.MeshTerms == nil {
		t.Error("MeshTerms should not be nil")
	}
}
