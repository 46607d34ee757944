package domain

import "fmt"

// Evidence is one eligibility criterion with a synthetic stable id.
// Text is a pointer so placeholder items can carry an explicit null.
type Evidence struct {
	ID   string  `json:"id"`
	Text *string `json:"text"`
}

// TrialBundle groups everything a downstream judge needs about one hit:
// the full trial payload, its criteria as addressable evidence items,
// and the retrieval score.
type TrialBundle struct {
	NCTID     string     `json:"nct_id"`
	Info      Trial      `json:"trial_info"`
	Inclusion []Evidence `json:"inclusion_criteria"`
	Exclusion []Evidence `json:"exclusion_criteria"`
	Score     float64    `json:"score"`
}

// Evidence id suffixes. Ids look like "NCT01234567:eligibility_inclusion:3".
const (
	EvidenceKindInclusion = "eligibility_inclusion"
	EvidenceKindExclusion = "eligibility_exclusion"
	EvidenceKindMetadata  = "metadata"
)

// EvidenceID builds the synthetic id for the i-th criterion of a trial.
func EvidenceID(nctID, kind string, i int) string {
	return fmt.Sprintf("%s:%s:%d", nctID, kind, i)
}

// MetadataEvidenceID builds the id of the per-trial placeholder item.
func MetadataEvidenceID(nctID string) string {
	return nctID + ":" + EvidenceKindMetadata
}
