package retrieval

import (
	"strings"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// buildBundles turns ranked hits into per-trial evidence bundles.
//
// Rank order is preserved, duplicate nct_ids keep the first (best)
// hit, and hits without an nct_id are skipped. Criterion ids carry the
// source list position even when blank entries are dropped, so an id
// always points at the same criterion in the stored payload. A trial
// with no criteria at all gets a single inclusion-side placeholder
// with null text, keeping every bundle's evidence list non-empty.
func buildBundles(ranked []domain.RankedTrial) []domain.TrialBundle {
	bundles := make([]domain.TrialBundle, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))

	for _, hit := range ranked {
		nctID := hit.Trial.NCTID
		if nctID == "" || seen[nctID] {
			continue
		}
		seen[nctID] = true

		info := hit.Trial
		info.EnsureLists()

		inclusion := criteriaEvidence(nctID, domain.EvidenceKindInclusion, info.InclusionCriteria)
		exclusion := criteriaEvidence(nctID, domain.EvidenceKindExclusion, info.ExclusionCriteria)

		if len(inclusion) == 0 && len(exclusion) == 0 {
			inclusion = []domain.Evidence{{ID: domain.MetadataEvidenceID(nctID), Text: nil}}
		}

		bundles = append(bundles, domain.TrialBundle{
			NCTID:     nctID,
			Info:      info,
			Inclusion: inclusion,
			Exclusion: exclusion,
			Score:     hit.Score,
		})
	}

	return bundles
}

func criteriaEvidence(nctID, kind string, criteria []string) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(criteria))
	for i, text := range criteria {
		if strings.TrimSpace(text) == "" {
			continue
		}
		text := text
		out = append(out, domain.Evidence{
			ID:   domain.EvidenceID(nctID, kind, i),
			Text: &text,
		})
	}
	return out
}
