package trial

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/trialmatch/trialmatch/internal/domain"
)

// Hash field names. The full trial record travels as one JSON blob in
// __payload; the flat fields next to it exist only for FT filtering.
const (
	FieldPayload = "__payload"
	FieldVector  = "__vector"
)

// MinAgeSentinel is indexed when a trial states no age floor. A hash
// with the NUMERIC field missing fails every range condition, so "no
// floor" must be a real value that any "min_age <= patient age" check
// passes.
const MinAgeSentinel = -1

// locationSeparator joins multi-value location facets into one TAG field.
const locationSeparator = "|"

// buildHashFields flattens a trial into the HSET field map.
func buildHashFields(t *domain.Trial, vector []float32) (map[string]string, error) {
	t.EnsureLists()

	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal trial %s: %w", t.NCTID, err)
	}

	gender := t.Gender
	if gender == "" {
		gender = domain.GenderAll
	}

	minAge := MinAgeSentinel
	if t.MinAge != nil {
		minAge = *t.MinAge
	}

	m := map[string]string{
		FieldPayload:     string(payload),
		FieldVector:      vectorToBytes(vector),
		"nct_id":         t.NCTID,
		"gender":         gender,
		"overall_status": t.OverallStatus,
		"min_age":        strconv.Itoa(minAge),
	}
	if t.MaxAge != nil {
		m["max_age"] = strconv.Itoa(*t.MaxAge)
	}
	if len(t.LocationCities) > 0 {
		m["location_cities"] = strings.Join(t.LocationCities, locationSeparator)
	}
	if len(t.LocationStates) > 0 {
		m["location_states"] = strings.Join(t.LocationStates, locationSeparator)
	}
	if len(t.LocationCountries) > 0 {
		m["location_countries"] = strings.Join(t.LocationCountries, locationSeparator)
	}
	return m, nil
}

// ParsePayload decodes the __payload JSON blob back into a trial.
func ParsePayload(data string) (domain.Trial, error) {
	var t domain.Trial
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return domain.Trial{}, fmt.Errorf("unmarshal trial payload: %w", err)
	}
	t.EnsureLists()
	return t, nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
