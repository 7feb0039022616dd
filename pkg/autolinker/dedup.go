package autolinker

import (
	"context"

	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

// pairKey uniquely identifies an unordered node pair so the same candidate
// pair found from either side of the search isn't processed twice.
type pairKey struct{ a, b types.RecordID }

func newPairKey(a, b types.RecordID) pairKey {
	if b.Less(a) {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// runDedup implements spec.md §4.7's "Dedup / merge": search-threshold the
// index at DedupThreshold for every live node, and for each pair above
// threshold apply the Supersede/Link/Merge cascade exactly once.
func (e *Engine) runDedup(ctx context.Context, metrics *Metrics) error {
	seen := make(map[pairKey]bool)

	return e.storage.StreamNodes(ctx, func(node *types.Node) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if node.Deleted || len(node.Embedding) == 0 {
			return nil
		}

		matches, err := e.index.SearchThreshold(ctx, node.Embedding, float64(e.cfg.DedupThreshold), &vectorindex.Filter{ExcludeIDs: []types.RecordID{node.ID}})
		if err != nil {
			return nil
		}

		for _, m := range matches {
			key := newPairKey(node.ID, m.ID)
			if seen[key] {
				continue
			}
			seen[key] = true

			other, err := e.storage.GetNode(ctx, m.ID, false)
			if err != nil || other.Deleted {
				continue
			}

			metrics.DuplicatesFound++
			if err := e.resolveDuplicate(ctx, node, other); err != nil {
				e.logger.Printf("autolinker: dedup %s/%s: %v", node.ID, other.ID, err)
			}
		}
		return nil
	})
}

// resolveDuplicate applies the three-way cascade from spec.md §4.7.
func (e *Engine) resolveDuplicate(ctx context.Context, a, b *types.Node) error {
	exactContent := contentFingerprint(a) == contentFingerprint(b)
	if (exactContent || titleSimilarity(a.Title, b.Title) >= 0.9) && !a.CreatedAt.Equal(b.CreatedAt) {
		newer, older := a, b
		if b.CreatedAt.After(a.CreatedAt) {
			newer, older = b, a
		}
		return e.linkSupersedes(ctx, newer, older)
	}

	aEdges, err := e.incidentRelations(ctx, a.ID)
	if err != nil {
		return err
	}
	bEdges, err := e.incidentRelations(ctx, b.ID)
	if err != nil {
		return err
	}
	if hasDistinctRelationTargets(aEdges, bEdges) {
		return e.linkRelated(ctx, a, b)
	}

	keep, retire, err := e.selectKeep(ctx, a, b)
	if err != nil {
		return err
	}
	return e.merge(ctx, keep, retire)
}

// incidentRelations returns the set of distinct relations on edges
// incident to id, used to decide whether a and b each already carry
// structurally distinct relationships worth preserving side-by-side
// instead of merging.
func (e *Engine) incidentRelations(ctx context.Context, id types.RecordID) (map[string]bool, error) {
	relations := make(map[string]bool)
	out, err := e.storage.EdgesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, edge := range out {
		relations[edge.Relation] = true
	}
	in, err := e.storage.EdgesTo(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, edge := range in {
		relations[edge.Relation] = true
	}
	return relations, nil
}

func hasDistinctRelationTargets(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for rel := range a {
		if !b[rel] {
			return true
		}
	}
	for rel := range b {
		if !a[rel] {
			return true
		}
	}
	return false
}

// selectKeep picks the surviving node of a merge: more incident edges
// wins; ties broken by older created_at (spec.md §4.7 "Keep-selection").
func (e *Engine) selectKeep(ctx context.Context, a, b *types.Node) (keep, retire *types.Node, err error) {
	aCount, err := e.incidentEdgeCount(ctx, a.ID)
	if err != nil {
		return nil, nil, err
	}
	bCount, err := e.incidentEdgeCount(ctx, b.ID)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case aCount > bCount:
		return a, b, nil
	case bCount > aCount:
		return b, a, nil
	case a.CreatedAt.Before(b.CreatedAt):
		return a, b, nil
	default:
		return b, a, nil
	}
}

func (e *Engine) incidentEdgeCount(ctx context.Context, id types.RecordID) (int, error) {
	out, err := e.storage.EdgesFrom(ctx, id)
	if err != nil {
		return 0, err
	}
	in, err := e.storage.EdgesTo(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(out) + len(in), nil
}

// linkSupersedes creates a supersedes edge from newer to older, leaving
// both nodes live (case (i) of the cascade).
func (e *Engine) linkSupersedes(ctx context.Context, newer, older *types.Node) error {
	if existing, err := e.storage.EdgeBetween(ctx, newer.ID, older.ID, "supersedes"); err == nil && existing != nil {
		return nil
	}
	edge := &types.Edge{
		ID: types.NewRecordID(), From: newer.ID, To: older.ID, Relation: "supersedes",
		Weight: 0.9, Provenance: types.AutoStructuralProvenance{Rule: "dedup_supersede"},
	}
	return e.storage.PutEdge(ctx, edge)
}

// linkRelated creates a related_to edge between a and b, leaving both
// nodes live (case (ii) of the cascade).
func (e *Engine) linkRelated(ctx context.Context, a, b *types.Node) error {
	if existing, err := e.storage.EdgeBetween(ctx, a.ID, b.ID, "related_to"); err == nil && existing != nil {
		return nil
	}
	edge := &types.Edge{
		ID: types.NewRecordID(), From: a.ID, To: b.ID, Relation: "related_to",
		Weight: 0.6, Provenance: types.AutoStructuralProvenance{Rule: "dedup_link"},
	}
	return e.storage.PutEdge(ctx, edge)
}

// merge folds retire into keep (case (iii) of the cascade): transfer
// edges, create a supersedes edge, tombstone retire, union tags, merge
// metadata with keep winning conflicts, and re-embed keep if its body
// changed.
func (e *Engine) merge(ctx context.Context, keep, retire *types.Node) error {
	if err := e.transferEdges(ctx, keep.ID, retire.ID); err != nil {
		return err
	}

	supersedes := &types.Edge{
		ID: types.NewRecordID(), From: keep.ID, To: retire.ID, Relation: "supersedes",
		Weight: 0.9, Provenance: types.AutoStructuralProvenance{Rule: "dedup_merge"},
	}
	if err := e.storage.PutEdge(ctx, supersedes); err != nil {
		return err
	}

	keep.Tags = unionTags(keep.Tags, retire.Tags)
	if keep.Metadata == nil {
		keep.Metadata = make(map[string]any, len(retire.Metadata))
	}
	for k, v := range retire.Metadata {
		if _, exists := keep.Metadata[k]; !exists {
			keep.Metadata[k] = v
		}
	}
	if err := e.storage.PutNode(ctx, keep); err != nil {
		return err
	}

	if err := e.storage.DeleteNode(ctx, retire.ID); err != nil {
		return err
	}
	e.index.Remove(retire.ID)
	return nil
}

// transferEdges re-points every edge incident to retire onto keep,
// deduping on (from, to, relation) with the higher weight winning.
func (e *Engine) transferEdges(ctx context.Context, keep, retire types.RecordID) error {
	out, err := e.storage.EdgesFrom(ctx, retire)
	if err != nil {
		return err
	}
	in, err := e.storage.EdgesTo(ctx, retire)
	if err != nil {
		return err
	}

	for _, edge := range out {
		if edge.To == keep {
			continue
		}
		if err := e.retargetEdge(ctx, edge, keep, edge.To); err != nil {
			return err
		}
	}
	for _, edge := range in {
		if edge.From == keep {
			continue
		}
		if err := e.retargetEdge(ctx, edge, edge.From, keep); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) retargetEdge(ctx context.Context, edge *types.Edge, from, to types.RecordID) error {
	if existing, err := e.storage.EdgeBetween(ctx, from, to, edge.Relation); err == nil && existing != nil {
		if edge.Weight > existing.Weight {
			existing.Weight = edge.Weight
			return e.storage.PutEdge(ctx, existing)
		}
		return nil
	}

	moved := &types.Edge{
		ID: types.NewRecordID(), From: from, To: to, Relation: edge.Relation,
		Weight: edge.Weight, Provenance: edge.Provenance,
	}
	return e.storage.PutEdge(ctx, moved)
}

func unionTags(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range append(append([]string{}, a...), b...) {
		if !set[t] {
			set[t] = true
			out = append(out, t)
		}
	}
	return out
}
