package domain

// TrialLocation is a single recruiting site from the trial record.
type TrialLocation struct {
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Country string   `json:"country,omitempty"`
	Status  string   `json:"status,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Trial is the payload of one indexed trial. Created wholesale by ingestion;
// read-only for the retrieval path.
type Trial struct {
	NCTID             string          `json:"nct_id"`
	Title             string          `json:"trial_title"`
	OverallStatus     string          `json:"overall_status,omitempty"`
	Phase             string          `json:"phase,omitempty"`
	StudyType         string          `json:"study_type,omitempty"`
	Gender            string          `json:"gender,omitempty"` // MALE, FEMALE or ALL
	MinAge            *int            `json:"min_age"`          // years; nil = no stated floor
	MaxAge            *int            `json:"max_age"`          // years; nil = no stated ceiling
	Conditions        []string        `json:"conditions"`
	Interventions     []string        `json:"interventions"`
	MeshTerms         []string        `json:"mesh_terms,omitempty"`
	URL               string          `json:"url,omitempty"`
	Locations         []TrialLocation `json:"locations"`
	LocationCities    []string        `json:"location_cities"`
	LocationStates    []string        `json:"location_states"`
	LocationCountries []string        `json:"location_countries"`
	InclusionCriteria []string        `json:"inclusion_criteria"`
	ExclusionCriteria []string        `json:"exclusion_criteria"`
}

// EnsureLists replaces nil list fields with empty slices so downstream
// JSON renders [] rather than null.
func (t *Trial) EnsureLists() {
	if t.Conditions == nil {
		t.Conditions = []string{}
	}
	if t.Interventions == nil {
		t.Interventions = []string{}
	}
	if t.Locations == nil {
		t.Locations = []TrialLocation{}
	}
	if t.LocationCities == nil {
		t.LocationCities = []string{}
	}
	if t.LocationStates == nil {
		t.LocationStates = []string{}
	}
	if t.LocationCountries == nil {
		t.LocationCountries = []string{}
	}
	if t.InclusionCriteria == nil {
		t.InclusionCriteria = []string{}
	}
	if t.ExclusionCriteria == nil {
		t.ExclusionCriteria = []string{}
	}
}

// RankedTrial is one search hit: the trial payload plus the index similarity score.
type RankedTrial struct {
	Trial Trial
	Score float64
}
