package briefing

import "time"

// Config holds the briefing engine's tunables (spec.md §4.8 "Budgets" and
// "Cache").
type Config struct {
	MaxItemsPerSection int
	MaxTotalItems      int
	MaxChars           int

	CacheTTL time.Duration

	RecentWindow           time.Duration // window for "Active context" and "Recent events"
	LowConfidenceThreshold float32       // auto-linker edge weight below which an item is "flagged for review"

	PrecomputeInterval time.Duration
	PrecomputeAgents   []string
}

func DefaultConfig() Config {
	return Config{
		MaxItemsPerSection:     10,
		MaxTotalItems:          50,
		MaxChars:               8000,
		CacheTTL:               5 * time.Minute,
		RecentWindow:           48 * time.Hour,
		LowConfidenceThreshold: 0.4,
		PrecomputeInterval:     5 * time.Minute,
	}
}
