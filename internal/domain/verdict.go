package domain

// Eligibility is the judge's normalized conclusion for one trial.
type Eligibility string

const (
	EligibilityPossible   Eligibility = "POSSIBLY ELIGIBLE"
	EligibilityIneligible Eligibility = "INELIGIBLE"
)

// Verdict is one judged trial: which trial, the normalized eligibility
// call, and a short free-text explanation.
type Verdict struct {
	NCTID       string      `json:"nct_id"`
	Eligibility Eligibility `json:"eligibility"`
	Explanation string      `json:"explanation"`
}
