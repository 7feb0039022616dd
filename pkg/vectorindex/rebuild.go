package vectorindex

import (
	"context"

	"github.com/orneryd/knowgraph/pkg/types"
)

// Rebuild clears idx and re-inserts every (id, vector) pair produced by
// streamNodes, in whatever order the source yields them. streamNodes
// mirrors storage.Engine's StreamNodes shape so the façade can pass that
// method directly, filtering to nodes that carry an embedding before
// calling visit.
//
// Rebuild is idempotent and deterministic given the same set of pairs
// (spec.md §4.4): re-running it against an unchanged node set reconstructs
// an index whose search results are unchanged, even though level
// assignment is randomized per node.
func (idx *Index) Rebuild(ctx context.Context, streamNodes func(ctx context.Context, visit func(id types.RecordID, vec []float32, kind, sourceAgent string) error) error) error {
	idx.mu.Lock()
	idx.nodes = make(map[types.RecordID]*hnswNode)
	idx.entryPoint = types.Zero
	idx.maxLevel = 0
	idx.mu.Unlock()

	return streamNodes(ctx, func(id types.RecordID, vec []float32, kind, sourceAgent string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return idx.Insert(id, vec, kind, sourceAgent)
	})
}
