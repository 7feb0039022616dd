package autolinker

import "time"

// Config holds the reconciliation loop's tunables (spec.md §4.7).
type Config struct {
	Interval time.Duration // how often Tick runs under Run's scheduler loop

	AutoLinkThreshold      float32 // Similarity rule trigger
	AutoLinkK              int     // candidates pulled per node from the vector index
	ContradictionThreshold float32
	TemporalWindow         time.Duration // TemporalProximity rule window

	MaxNodesPerCycle         int
	MaxEdgesPerCycle         int
	MaxEdgesPerNode          int // explosion guard: top-N by weight kept per node
	GenericContentCandidates int // explosion guard: candidate count above which a node is flagged instead of linked

	DecayEveryN    int
	DedupEveryN    int
	DedupThreshold float32

	RunOnStartup bool
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		Interval:                 60 * time.Second,
		AutoLinkThreshold:        0.75,
		AutoLinkK:                10,
		ContradictionThreshold:   0.80,
		TemporalWindow:           30 * time.Minute,
		MaxNodesPerCycle:         500,
		MaxEdgesPerCycle:         2000,
		MaxEdgesPerNode:          50,
		GenericContentCandidates: 30,
		DecayEveryN:              1,
		DedupEveryN:              10,
		DedupThreshold:           0.92,
		RunOnStartup:             true,
	}
}
