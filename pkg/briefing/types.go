package briefing

import (
	"time"

	"github.com/orneryd/knowgraph/pkg/types"
)

// Item is one entry within a briefing section.
type Item struct {
	NodeID types.RecordID
	Kind   string
	Title  string
	Score  float64 // section-specific ranking signal; higher is more relevant, except in "Patterns & lessons" where it is the traversal depth and lower ranks first
	Reason string  // one-line explanation of why this item was included
}

// Section is a named, ranked, budget-truncated group of items.
type Section struct {
	Name      string
	Items     []Item
	Truncated bool // true if items were dropped to respect MaxItemsPerSection or MaxTotalItems, or the section's traversal was truncated
}

// Briefing is the generated document for one agent.
type Briefing struct {
	AgentID      string
	Compact      bool
	GeneratedAt  time.Time
	GraphVersion uint64
	Sections     []Section
	Truncated    bool // true if MaxTotalItems or MaxChars clipped the document
}

// cacheKey is the briefing cache's key shape (spec.md §4.8 "Cache").
type cacheKey struct {
	AgentID string
	Compact bool
}

type cacheValue struct {
	briefing     *Briefing
	generatedAt  time.Time
	graphVersion uint64
}
