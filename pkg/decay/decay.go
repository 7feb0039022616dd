// Package decay implements edge-weight exponential decay (spec.md §4.7).
//
// Unlike a node-tier memory model, decay here targets individual edges:
// every auto-linker cycle that is a multiple of decay_every_n, each
// non-manual edge's weight is scaled down by an exponential factor
// proportional to how long it has gone untouched, shielded in proportion
// to the importance of its endpoints. Edges that decay below
// DeleteThreshold are hard-deleted; edges below PruneThreshold are only
// classified as Pruned and keep their decayed weight. The graph engine
// applies no prune floor of its own: a Pruned edge is left out of a
// traversal only when the request's MinWeight is above its weight.
package decay

import "math"

// Config holds the decay tunables from spec.md §4.7.
type Config struct {
	DailyRate        float64 // base daily decay rate
	ImportanceShield float64 // fraction of decay an importance-1.0 endpoint shields
	PruneThreshold   float64 // below this, edge is classified Pruned (kept, weight updated)
	DeleteThreshold  float64 // below this, edge is hard-deleted
	ExemptManual     bool    // if true, Manual-provenance edges never decay
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		DailyRate:        0.01,
		ImportanceShield: 0.8,
		PruneThreshold:   0.1,
		DeleteThreshold:  0.05,
		ExemptManual:     true,
	}
}

// Outcome classifies what should happen to an edge after a decay pass.
type Outcome int

const (
	Unchanged Outcome = iota
	Pruned            // weak: kept with its decayed weight, not deleted
	Delete            // weight fell below DeleteThreshold, hard-delete
)

// Apply computes an edge's new weight after deltaDays of inactivity, given
// the greater of its two endpoints' importance, and the outcome that
// follows (spec.md §4.7 "Edge decay").
func Apply(cfg Config, currentWeight float32, deltaDays float64, maxEndpointImportance float32) (newWeight float32, outcome Outcome) {
	effectiveRate := cfg.DailyRate * (1 - float64(maxEndpointImportance)*cfg.ImportanceShield)
	factor := math.Exp(-effectiveRate * deltaDays)
	decayed := float64(currentWeight) * factor

	switch {
	case decayed < cfg.DeleteThreshold:
		return float32(decayed), Delete
	case decayed < cfg.PruneThreshold:
		return float32(decayed), Pruned
	default:
		return float32(decayed), Unchanged
	}
}
