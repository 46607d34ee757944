package retrieval

import (
	"strings"
	"testing"

	"github.com/trialmatch/trialmatch/internal/domain"
)

func TestBuildBundles_EvidenceIDs(t *testing.T) {
	ranked := []domain.RankedTrial{{
		Trial: domain.Trial{
			NCTID:             "NCT01234567",
			InclusionCriteria: []string{"Age 18 or older", "Histologically confirmed diagnosis"},
			ExclusionCriteria: []string{"Prior chemotherapy"},
		},
		Score: 0.9,
	}}

	bundles := buildBundles(ranked)
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}
	b := bundles[0]

	if len(b.Inclusion) != 2 {
		t.Fatalf("expected 2 inclusion items, got %d", len(b.Inclusion))
	}
	if b.Inclusion[0].ID != "NCT01234567:eligibility_inclusion:0" {
		t.Errorf("unexpected id: %s", b.Inclusion[0].ID)
	}
	if b.Inclusion[1].ID != "NCT01234567:eligibility_inclusion:1" {
		t.Errorf("unexpected id: %s", b.Inclusion[1].ID)
	}
	if b.Inclusion[0].Text == nil || *b.Inclusion[0].Text != "Age 18 or older" {
		t.Errorf("unexpected text: %v", b.Inclusion[0].Text)
	}
	if len(b.Exclusion) != 1 || b.Exclusion[0].ID != "NCT01234567:eligibility_exclusion:0" {
		t.Errorf("unexpected exclusion: %+v", b.Exclusion)
	}
	if b.Score != 0.9 {
		t.Errorf("score = %v", b.Score)
	}
}

func TestBuildBundles_BlankCriteriaKeepSourceIndex(t *testing.T) {
	ranked := []domain.RankedTrial{{
		Trial: domain.Trial{
			NCTID:             "NCT00000001",
			InclusionCriteria: []string{"First", "   ", "Third"},
		},
	}}

	b := buildBundles(ranked)[0]
	if len(b.Inclusion) != 2 {
		t.Fatalf("expected 2 items (blank dropped), got %d", len(b.Inclusion))
	}
	// The surviving third criterion keeps index 2, not 1.
	if b.Inclusion[1].ID != "NCT00000001:eligibility_inclusion:2" {
		t.Errorf("unexpected id: %s", b.Inclusion[1].ID)
	}
}

func TestBuildBundles_MetadataPlaceholder(t *testing.T) {
	ranked := []domain.RankedTrial{{
		Trial: domain.Trial{NCTID: "NCT00000002"},
	}}

	b := buildBundles(ranked)[0]
	if len(b.Inclusion) != 1 || len(b.Exclusion) != 0 {
		t.Fatalf("expected exactly one inclusion-side item, got %d/%d",
			len(b.Inclusion), len(b.Exclusion))
	}
	item := b.Inclusion[0]
	if !strings.HasSuffix(item.ID, ":metadata") {
		t.Errorf("placeholder id = %s", item.ID)
	}
	if item.Text != nil {
		t.Errorf("placeholder text must be null, got %q", *item.Text)
	}
}

func TestBuildBundles_SkipsAndDeduplicates(t *testing.T) {
	ranked := []domain.RankedTrial{
		{Trial: domain.Trial{NCTID: ""}, Score: 0.99},
		{Trial: domain.Trial{NCTID: "NCT00000003"}, Score: 0.9},
		{Trial: domain.Trial{NCTID: "NCT00000003"}, Score: 0.5},
		{Trial: domain.Trial{NCTID: "NCT00000004"}, Score: 0.4},
	}

	bundles := buildBundles(ranked)
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}
	if bundles[0].NCTID != "NCT00000003" || bundles[0].Score != 0.9 {
		t.Errorf("duplicate must keep the first (best) hit: %+v", bundles[0])
	}
	if bundles[1].NCTID != "NCT00000004" {
		t.Errorf("rank order must be preserved: %+v", bundles[1])
	}
}

func TestBuildBundles_InfoListsNeverNull(t *testing.T) {
	ranked := []domain.RankedTrial{{Trial: domain.Trial{NCTID: "NCT00000005"}}}

	info := buildBundles(ranked)[0].Info
	if info.Conditions == nil || info.Locations == nil || info.InclusionCriteria == nil {
		t.Error("info lists must default to empty, not null")
	}
}
