package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// mapStudy normalizes one API study into a trial record. Official
// title wins over brief title, the first phase stands in for the
// phase list, and the eligibility markdown is split into inclusion and
// exclusion bullets.
func mapStudy(study ctgovStudy) domain.Trial {
	ps := study.ProtocolSection

	title := ps.IdentificationModule.OfficialTitle
	if title == "" {
		title = ps.IdentificationModule.BriefTitle
	}

	phase := ""
	if len(ps.DesignModule.Phases) > 0 {
		phase = ps.DesignModule.Phases[0]
	}

	interventions := make([]string, 0, len(ps.ArmsInterventionsModule.Interventions))
	for _, itv := range ps.ArmsInterventionsModule.Interventions {
		if itv.Name != "" {
			interventions = append(interventions, itv.Name)
		}
	}

	meshTerms := make([]string, 0, len(study.DerivedSection.ConditionBrowseModule.Meshes))
	for _, m := range study.DerivedSection.ConditionBrowseModule.Meshes {
		if m.Term != "" {
			meshTerms = append(meshTerms, m.Term)
		}
	}

	locations := make([]domain.TrialLocation, 0, len(ps.ContactsLocationsModule.Locations))
	cities := make([]string, 0, len(ps.ContactsLocationsModule.Locations))
	states := make([]string, 0, len(ps.ContactsLocationsModule.Locations))
	countries := make([]string, 0, len(ps.ContactsLocationsModule.Locations))
	for _, loc := range ps.ContactsLocationsModule.Locations {
		locations = append(locations, domain.TrialLocation{
			City:    loc.City,
			State:   loc.State,
			Country: loc.Country,
			Status:  loc.Status,
			Lat:     loc.GeoPoint.Lat,
			Lon:     loc.GeoPoint.Lon,
		})
		cities = append(cities, loc.City)
		states = append(states, loc.State)
		countries = append(countries, loc.Country)
	}

	inclusion, exclusion := splitCriteria(ps.EligibilityModule.EligibilityCriteria)

	nctID := strings.TrimSpace(ps.IdentificationModule.NCTID)
	url := ""
	if nctID != "" {
		url = "https://clinicaltrials.gov/study/" + nctID
	}

	t := domain.Trial{
		NCTID:             nctID,
		Title:             title,
		OverallStatus:     ps.StatusModule.OverallStatus,
		Phase:             phase,
		StudyType:         ps.DesignModule.StudyType,
		Gender:            ps.EligibilityModule.Sex,
		MinAge:            ageToYears(ps.EligibilityModule.MinimumAge),
		MaxAge:            ageToYears(ps.EligibilityModule.MaximumAge),
		Conditions:        ps.ConditionsModule.Conditions,
		Interventions:     interventions,
		MeshTerms:         meshTerms,
		URL:               url,
		Locations:         locations,
		LocationCities:    lowerUnique(cities),
		LocationStates:    lowerUnique(states),
		LocationCountries: lowerUnique(countries),
		InclusionCriteria: inclusion,
		ExclusionCriteria: exclusion,
	}
	t.EnsureLists()
	return t
}

// ageToYears converts strings like "65 Years" or "6 Months" to whole
// years. "N/A", empty, and unparsable values become nil.
func ageToYears(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return nil
	}
	parts := strings.Fields(value)
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil
	}

	unit := "years"
	if len(parts) > 1 {
		unit = strings.ToLower(parts[1])
	}

	years := 0
	switch {
	case strings.HasPrefix(unit, "year"):
		years = num
	case strings.HasPrefix(unit, "month"):
		years = int(math.Round(float64(num) / 12))
	case strings.HasPrefix(unit, "week"):
		years = int(math.Round(float64(num) / 52))
	case strings.HasPrefix(unit, "day"):
		years = int(math.Round(float64(num) / 365))
	default:
		return nil
	}
	if years < 0 {
		years = 0
	}
	return &years
}

var (
	exclusionHeading = regexp.MustCompile(`(?im)^\s*exclusion criteria\s*:?\s*$`)
	inclusionHeading = regexp.MustCompile(`(?im)^\s*inclusion criteria\s*:?\s*$`)
	bulletLine       = regexp.MustCompile(`(?m)^\s*(?:[-*\x{2022}]|\d+\.|\([a-zA-Z]\))\s+(.+)$`)
)

// splitCriteria splits eligibility markdown into inclusion and
// exclusion bullet lists. The usual layout is an "Inclusion Criteria"
// block followed by an "Exclusion Criteria" block; text before any
// heading counts as inclusion.
func splitCriteria(md string) (inclusion, exclusion []string) {
	if md == "" {
		return nil, nil
	}
	text := strings.ReplaceAll(md, "\r", "")

	inclBlock, exclBlock := text, ""
	if loc := exclusionHeading.FindStringIndex(text); loc != nil {
		inclBlock, exclBlock = text[:loc[0]], text[loc[1]:]
	}
	if loc := inclusionHeading.FindStringIndex(inclBlock); loc != nil {
		inclBlock = inclBlock[loc[1]:]
	}

	return bullets(inclBlock), bullets(exclBlock)
}

func bullets(block string) []string {
	matches := bulletLine.FindAllStringSubmatch(block, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// lowerUnique lower-cases, trims, and deduplicates facet values,
// preserving first-seen order.
func lowerUnique(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		v := strings.ToLower(strings.TrimSpace(item))
		if v == "" || seen[v] {
			continue
		}
		out = append(out, v)
		seen[v] = true
	}
	return out
}

// embeddingText builds the per-trial embedding input: title plus the
// top conditions and interventions. One vector per trial, criteria
// bullets stay out of the vector.
func embeddingText(t *domain.Trial) string {
	parts := make([]string, 0, 3)
	if title := strings.TrimSpace(t.Title); title != "" {
		parts = append(parts, title)
	}
	if top := topN(t.Conditions, 3); len(top) > 0 {
		parts = append(parts, "conditions: "+strings.Join(top, ", "))
	}
	if top := topN(t.Interventions, 3); len(top) > 0 {
		parts = append(parts, "interventions: "+strings.Join(top, ", "))
	}
	return strings.Join(parts, "\n\n")
}

func topN(items []string, n int) []string {
	out := make([]string, 0, n)
	for _, item := range items {
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == n {
			break
		}
	}
	return out
}
