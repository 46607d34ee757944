// Package domain holds the core types of trialmatch: the patient spec,
// the indexed trial record, the per-trial evidence bundle, and the
// sentinel error taxonomy shared by all layers.
package domain

// KeyPrefix namespaces all trialmatch keys in the database.
const KeyPrefix = "trialmatch:"
