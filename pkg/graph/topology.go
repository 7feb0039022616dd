package graph

import (
	"context"

	"github.com/orneryd/knowgraph/pkg/linkpredict"
	"github.com/orneryd/knowgraph/pkg/types"
)

// TopologyHints wraps an in-memory link-prediction graph snapshot so
// structural confidence signals can be read without re-streaming storage
// per node. The auto-linker's rules do not consult it; SharedTags and
// SameAgent keep their own fixed weights.
type TopologyHints struct {
	g linkpredict.Graph
}

// BuildTopologyHints snapshots the current edge set for topology scoring.
// The snapshot does not track graph_version, so it does not reflect edge
// writes made after it was built.
func (e *Engine) BuildTopologyHints(ctx context.Context) (*TopologyHints, error) {
	g, err := linkpredict.BuildGraph(ctx, e.storage)
	if err != nil {
		return nil, err
	}
	return &TopologyHints{g: g}, nil
}

// JaccardScore returns the Jaccard coefficient between a and b's
// neighborhoods, 0 if either has no neighbors.
func (t *TopologyHints) JaccardScore(a, b types.RecordID) float64 {
	for _, p := range linkpredict.Jaccard(t.g, a, 0) {
		if p.TargetID == b {
			return p.Score
		}
	}
	return 0
}

// AdamicAdarScore returns the Adamic-Adar score between a and b.
func (t *TopologyHints) AdamicAdarScore(a, b types.RecordID) float64 {
	for _, p := range linkpredict.AdamicAdar(t.g, a, 0) {
		if p.TargetID == b {
			return p.Score
		}
	}
	return 0
}

// CommonNeighborCount returns |N(a) ∩ N(b)|.
func (t *TopologyHints) CommonNeighborCount(a, b types.RecordID) int {
	for _, p := range linkpredict.CommonNeighbors(t.g, a, 0) {
		if p.TargetID == b {
			return int(p.Score)
		}
	}
	return 0
}
