package graph

import (
	"context"
	"sort"

	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

// Neighbor is one adjacent node reached by a single edge.
type Neighbor struct {
	Node     *types.Node
	EdgeID   types.RecordID
	Relation string
	Weight   float32
}

// Neighbors returns id's immediate neighbours in dir, optionally narrowed
// to relationFilter (spec.md §4.5 "neighbors(id, dir, relation_filter)").
func (e *Engine) Neighbors(ctx context.Context, id types.RecordID, dir Direction, relationFilter []string) ([]Neighbor, error) {
	edges, err := e.neighborsOf(ctx, id, dir)
	if err != nil {
		return nil, err
	}
	req := Request{RelationFilter: relationFilter}
	out := make([]Neighbor, 0, len(edges))
	for _, adj := range edges {
		if !req.matchesRelation(adj.Relation) {
			continue
		}
		node, err := e.fetchNode(ctx, adj.Target)
		if err != nil {
			continue
		}
		out = append(out, Neighbor{Node: node, EdgeID: adj.EdgeID, Relation: adj.Relation, Weight: adj.Weight})
	}
	return out, nil
}

// Neighborhood returns the BFS subgraph of everything within depth hops of
// id in both directions (spec.md §4.5 "neighborhood(id, depth)").
func (e *Engine) Neighborhood(ctx context.Context, id types.RecordID, depth int) (*Subgraph, error) {
	return e.Traverse(ctx, Request{
		Start: []types.RecordID{id}, MaxDepth: depth, Direction: Both,
		Strategy: BFS, IncludeStart: true,
	})
}

// Reachable returns the transitive closure of id in dir (spec.md §4.5
// "reachable(id, dir)"). MaxDepth 0 means unbounded, capped only by the
// engine's visited-count budget.
func (e *Engine) Reachable(ctx context.Context, id types.RecordID, dir Direction) (*Subgraph, error) {
	return e.Traverse(ctx, Request{
		Start: []types.RecordID{id}, MaxDepth: 0, Direction: dir,
		Strategy: BFS, IncludeStart: false,
	})
}

// Roots returns nodes with no incoming edge of relation (spec.md §4.5
// "roots(relation)"). Leaves is the outgoing symmetric case.
func (e *Engine) Roots(ctx context.Context, relation string) ([]types.RecordID, error) {
	return e.noEdgeOf(ctx, relation, Incoming)
}

// Leaves returns nodes with no outgoing edge of relation.
func (e *Engine) Leaves(ctx context.Context, relation string) ([]types.RecordID, error) {
	return e.noEdgeOf(ctx, relation, Outgoing)
}

func (e *Engine) noEdgeOf(ctx context.Context, relation string, dir Direction) ([]types.RecordID, error) {
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{})
	if err != nil {
		return nil, err
	}
	var out []types.RecordID
	for _, n := range nodes {
		edges, err := e.neighborsOf(ctx, n.ID, dir)
		if err != nil {
			return nil, err
		}
		has := false
		for _, adj := range edges {
			if adj.Relation == relation {
				has = true
				break
			}
		}
		if !has {
			out = append(out, n.ID)
		}
	}
	return out, nil
}

// FindCycles returns one representative node id per simple cycle detected
// via DFS back-edge detection over the outgoing projection (spec.md §4.5
// "find_cycles()"). This finds cycle existence per component, not every
// distinct cycle in a densely-connected graph.
func (e *Engine) FindCycles(ctx context.Context) ([]types.RecordID, error) {
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{})
	if err != nil {
		return nil, err
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[types.RecordID]int)
	var cycleStarts []types.RecordID

	var visit func(id types.RecordID) error
	visit = func(id types.RecordID) error {
		color[id] = gray
		edges, err := e.neighborsOf(ctx, id, Outgoing)
		if err != nil {
			return err
		}
		for _, adj := range edges {
			switch color[adj.Target] {
			case white:
				if err := visit(adj.Target); err != nil {
					return err
				}
			case gray:
				cycleStarts = append(cycleStarts, adj.Target)
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]types.RecordID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	sortIDsDeterministic(ids)

	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return cycleStarts, nil
}

// Components returns the connected components of the undirected projection
// via union-find (spec.md §4.5 "components()").
func (e *Engine) Components(ctx context.Context) ([][]types.RecordID, error) {
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{})
	if err != nil {
		return nil, err
	}

	parent := make(map[types.RecordID]types.RecordID, len(nodes))
	for _, n := range nodes {
		parent[n.ID] = n.ID
	}

	var find func(id types.RecordID) types.RecordID
	find = func(id types.RecordID) types.RecordID {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b types.RecordID) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, n := range nodes {
		edges, err := e.neighborsOf(ctx, n.ID, Outgoing)
		if err != nil {
			return nil, err
		}
		for _, adj := range edges {
			if _, ok := parent[adj.Target]; ok {
				union(n.ID, adj.Target)
			}
		}
	}

	groups := make(map[types.RecordID][]types.RecordID)
	for _, n := range nodes {
		root := find(n.ID)
		groups[root] = append(groups[root], n.ID)
	}

	out := make([][]types.RecordID, 0, len(groups))
	for _, g := range groups {
		sortIDsDeterministic(g)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0].Less(out[j][0]) })
	return out, nil
}

// DegreeResult is one row of Engine.MostConnected.
type DegreeResult struct {
	ID     types.RecordID
	Degree int
}

// MostConnected ranks nodes by total in+out degree (spec.md §4.5
// "most_connected(limit)").
func (e *Engine) MostConnected(ctx context.Context, limit int) ([]DegreeResult, error) {
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{})
	if err != nil {
		return nil, err
	}

	results := make([]DegreeResult, 0, len(nodes))
	for _, n := range nodes {
		out, err := e.neighborsOf(ctx, n.ID, Both)
		if err != nil {
			return nil, err
		}
		results = append(results, DegreeResult{ID: n.ID, Degree: len(out)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Degree != results[j].Degree {
			return results[i].Degree > results[j].Degree
		}
		return results[i].ID.Less(results[j].ID)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
