package autolinker

import (
	"context"
	"time"

	"github.com/orneryd/knowgraph/pkg/decay"
	"github.com/orneryd/knowgraph/pkg/types"
)

// runDecay applies decay.Apply to every non-exempt edge (spec.md §4.7 "Edge
// decay"). Edges that fall below DeleteThreshold are hard-deleted; edges
// below PruneThreshold are weight-updated in place and counted in
// EdgesPruned. Traversals still follow them unless a request's MinWeight
// is above their weight.
func (e *Engine) runDecay(ctx context.Context, metrics *Metrics) error {
	now := time.Now()
	importanceCache := make(map[types.RecordID]float32)

	nodeImportance := func(id types.RecordID) float32 {
		if imp, ok := importanceCache[id]; ok {
			return imp
		}
		node, err := e.storage.GetNode(ctx, id, false)
		if err != nil {
			importanceCache[id] = 0
			return 0
		}
		importanceCache[id] = node.Importance
		return node.Importance
	}

	var toDelete []types.RecordID
	var toUpdate []*types.Edge

	err := e.storage.StreamEdges(ctx, func(edge *types.Edge) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.decayCfg.ExemptManual && types.IsManual(edge.Provenance) {
			return nil
		}

		deltaDays := now.Sub(edge.UpdatedAt).Hours() / 24
		if deltaDays <= 0 {
			return nil
		}

		maxImp := nodeImportance(edge.From)
		if toImp := nodeImportance(edge.To); toImp > maxImp {
			maxImp = toImp
		}

		newWeight, outcome := decay.Apply(e.decayCfg, edge.Weight, deltaDays, maxImp)
		switch outcome {
		case decay.Delete:
			toDelete = append(toDelete, edge.ID)
		default:
			if newWeight != edge.Weight {
				updated := *edge
				updated.Weight = newWeight
				toUpdate = append(toUpdate, &updated)
				if outcome == decay.Pruned {
					metrics.EdgesPruned++
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, edge := range toUpdate {
		if err := e.storage.PutEdge(ctx, edge); err != nil {
			e.logger.Printf("autolinker: decay update edge %s: %v", edge.ID, err)
		}
	}
	for _, id := range toDelete {
		if err := e.storage.DeleteEdge(ctx, id); err != nil {
			e.logger.Printf("autolinker: decay delete edge %s: %v", id, err)
			continue
		}
		metrics.EdgesDeleted++
	}

	return nil
}
