package trial

import (
	"github.com/trialmatch/trialmatch/internal/db"
	"github.com/trialmatch/trialmatch/internal/domain"
)

// HNSWConfig holds HNSW build parameters for the trial vector field.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// IndexName returns the FT index name for trials.
func IndexName() string {
	return domain.KeyPrefix + "trial:idx"
}

// Key returns the hash key of one trial.
func Key(nctID string) string {
	return domain.KeyPrefix + "trial:" + nctID
}

// KeyPattern matches every trial hash, for SCAN.
func KeyPattern() string {
	return domain.KeyPrefix + "trial:*"
}

// BuildIndex assembles the FT index definition over trial hashes.
// The vector field is aliased to "vector" because KNN queries reference
// @vector. Location facet lists are |-separated TAG fields; the default
// TAG separator (comma) collides with values like "winston, salem".
func BuildIndex(vectorDim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	def := &db.IndexDefinition{
		Name:     IndexName(),
		Prefixes: []string{domain.KeyPrefix + "trial:"},
		Fields: []db.IndexField{
			{Name: "nct_id", Type: db.IndexFieldTag},
			{Name: "gender", Type: db.IndexFieldTag},
			{Name: "overall_status", Type: db.IndexFieldTag},
			{Name: "min_age", Type: db.IndexFieldNumeric},
			{Name: "max_age", Type: db.IndexFieldNumeric},
			{Name: "location_cities", Type: db.IndexFieldTag, TagSeparator: locationSeparator},
			{Name: "location_states", Type: db.IndexFieldTag, TagSeparator: locationSeparator},
			{Name: "location_countries", Type: db.IndexFieldTag, TagSeparator: locationSeparator},
			{
				Name:              FieldVector,
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnsw.M,
				VectorEFConstruct: hnsw.EFConstruct,
			},
		},
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
