// Package graph implements traversal, pathfinding, and convenience queries
// over the node/edge graph stored in pkg/storage (spec.md §4.5).
//
// The engine holds no data of its own beyond a lazily-populated adjacency
// cache; storage remains the single source of truth, and every traversal
// reads through the cache, refreshing entries that have gone stale with
// respect to storage's graph_version counter.
package graph

import "github.com/orneryd/knowgraph/pkg/types"

// Direction constrains which edges a traversal follows at each step.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Strategy selects the traversal order.
type Strategy int

const (
	BFS Strategy = iota
	DFS
	Weighted
)

// Request describes one traversal (spec.md §4.5 "Traversal request fields").
type Request struct {
	Start          []types.RecordID
	MaxDepth       int
	Direction      Direction
	RelationFilter []string
	KindFilter     []string
	MinWeight      float32
	Limit          int
	Strategy       Strategy
	IncludeStart   bool
	CreatedAfter   *int64 // unix nanos, optional
}

func (r Request) matchesRelation(relation string) bool {
	if len(r.RelationFilter) == 0 {
		return true
	}
	for _, rel := range r.RelationFilter {
		if rel == relation {
			return true
		}
	}
	return false
}

func (r Request) matchesKind(kind string) bool {
	if len(r.KindFilter) == 0 {
		return true
	}
	for _, k := range r.KindFilter {
		if k == kind {
			return true
		}
	}
	return false
}

// Subgraph is the result of a traversal.
type Subgraph struct {
	Nodes        map[types.RecordID]*types.Node
	Edges        []*types.Edge
	Depth        map[types.RecordID]uint32
	VisitedCount int
	Truncated    bool
}

func newSubgraph() *Subgraph {
	return &Subgraph{
		Nodes: make(map[types.RecordID]*types.Node),
		Depth: make(map[types.RecordID]uint32),
	}
}

// Path is one result of a pathfinding operation.
type Path struct {
	Nodes       []types.RecordID
	Edges       []*types.Edge
	TotalWeight float64 // product of edge weights
	Length      int     // number of edges
}
