package graph

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/orneryd/knowgraph/pkg/types"
)

const weightEpsilon = 1e-9

// edgeCost transforms an edge weight into a Dijkstra-additive cost so that
// summing costs along a path corresponds to the product of the original
// weights (spec.md §4.5 "Shortest weighted path").
func edgeCost(weight float32) float64 {
	w := float64(weight)
	if w < weightEpsilon {
		w = weightEpsilon
	}
	return -math.Log(w)
}

// ShortestPath returns the first-discovered unweighted path from start to
// to, via BFS (spec.md §4.5 "Shortest path (unweighted)").
func (e *Engine) ShortestPath(ctx context.Context, start, to types.RecordID, dir Direction) (*Path, error) {
	if start == to {
		return &Path{Nodes: []types.RecordID{start}, TotalWeight: 1, Length: 0}, nil
	}

	visited := map[types.RecordID]bool{start: true}
	prev := map[types.RecordID]pathStep{}
	queue := []types.RecordID{start}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cur := queue[0]
		queue = queue[1:]

		edges, err := e.neighborsOf(ctx, cur, dir)
		if err != nil {
			return nil, err
		}
		sortEdgesDeterministic(edges)
		for _, adj := range edges {
			if visited[adj.Target] {
				continue
			}
			visited[adj.Target] = true
			prev[adj.Target] = pathStep{from: cur, edge: adj}
			if adj.Target == to {
				return reconstructPath(prev, start, to), nil
			}
			queue = append(queue, adj.Target)
		}
	}
	return nil, nil
}

// pathStep records how a node was first reached during a BFS or Dijkstra
// traversal, so the winning path can be reconstructed by walking prev
// backwards from the destination.
type pathStep struct {
	from types.RecordID
	edge adjEdge
}

func reconstructPath(prev map[types.RecordID]pathStep, start, to types.RecordID) *Path {
	var nodes []types.RecordID
	var edges []*types.Edge
	totalWeight := 1.0
	cur := to
	nodes = append(nodes, cur)
	for cur != start {
		step := prev[cur]
		edges = append([]*types.Edge{{ID: step.edge.EdgeID, Relation: step.edge.Relation, Weight: step.edge.Weight}}, edges...)
		totalWeight *= float64(step.edge.Weight)
		cur = step.from
		nodes = append([]types.RecordID{cur}, nodes...)
	}
	return &Path{Nodes: nodes, Edges: edges, TotalWeight: totalWeight, Length: len(edges)}
}

// ShortestWeightedPath finds the path maximizing the product of edge
// weights via Dijkstra over the transformed cost (spec.md §4.5).
func (e *Engine) ShortestWeightedPath(ctx context.Context, start, to types.RecordID, dir Direction) (*Path, error) {
	return e.dijkstra(ctx, start, to, dir, nil)
}

type dijkstraItem struct {
	id   types.RecordID
	cost float64
}
type dijkstraHeap []dijkstraItem

func (h dijkstraHeap) Len() int { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].id.Less(h[j].id)
}
func (h dijkstraHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *dijkstraHeap) Push(x interface{}) { *h = append(*h, x.(dijkstraItem)) }
func (h *dijkstraHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// dijkstra computes the min-cost path from start to to. If excludeEdges is
// non-nil, edges whose edge ID is present are skipped —
// used by Yen's algorithm to compute alternative paths.
func (e *Engine) dijkstra(ctx context.Context, start, to types.RecordID, dir Direction, excludeEdges map[types.RecordID]bool) (*Path, error) {
	dist := map[types.RecordID]float64{start: 0}
	prev := map[types.RecordID]pathStep{}
	visited := map[types.RecordID]bool{}

	pq := &dijkstraHeap{{id: start, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cur := heap.Pop(pq).(dijkstraItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == to {
			break
		}

		edges, err := e.neighborsOf(ctx, cur.id, dir)
		if err != nil {
			return nil, err
		}
		sortEdgesDeterministic(edges)
		for _, adj := range edges {
			if excludeEdges != nil && excludeEdges[adj.EdgeID] {
				continue
			}
			if visited[adj.Target] {
				continue
			}
			next := dist[cur.id] + edgeCost(adj.Weight)
			if existing, ok := dist[adj.Target]; !ok || next < existing {
				dist[adj.Target] = next
				prev[adj.Target] = pathStep{from: cur.id, edge: adj}
				heap.Push(pq, dijkstraItem{id: adj.Target, cost: next})
			}
		}
	}

	if _, ok := dist[to]; !ok || start == to {
		if start == to {
			return &Path{Nodes: []types.RecordID{start}, TotalWeight: 1, Length: 0}, nil
		}
		return nil, nil
	}

	var nodes []types.RecordID
	var pathEdges []*types.Edge
	totalWeight := 1.0
	cur := to
	nodes = append(nodes, cur)
	for cur != start {
		step := prev[cur]
		pathEdges = append([]*types.Edge{{ID: step.edge.EdgeID, Relation: step.edge.Relation, Weight: step.edge.Weight}}, pathEdges...)
		totalWeight *= float64(step.edge.Weight)
		cur = step.from
		nodes = append([]types.RecordID{cur}, nodes...)
	}

	return &Path{Nodes: nodes, Edges: pathEdges, TotalWeight: totalWeight, Length: len(pathEdges)}, nil
}

// KShortestPaths returns up to k loopless paths from start to to, ranked
// by ascending Dijkstra cost (descending total weight), via Yen's
// algorithm (spec.md §4.5 "k-shortest loopless paths").
func (e *Engine) KShortestPaths(ctx context.Context, start, to types.RecordID, dir Direction, k int) ([]*Path, error) {
	first, err := e.dijkstra(ctx, start, to, dir, nil)
	if err != nil || first == nil {
		return nil, err
	}

	result := []*Path{first}
	candidates := make([]*Path, 0)
	seen := map[string]bool{pathKey(first): true}

	for len(result) < k {
		prevPath := result[len(result)-1]
		for i := 0; i < len(prevPath.Nodes)-1; i++ {
			spurNode := prevPath.Nodes[i]
			rootPath := prevPath.Nodes[:i+1]

			exclude := map[types.RecordID]bool{}
			for _, p := range result {
				if len(p.Nodes) > i && equalPrefix(p.Nodes[:i+1], rootPath) && len(p.Edges) > i {
					exclude[p.Edges[i].ID] = true
				}
			}

			spurPath, err := e.dijkstra(ctx, spurNode, to, dir, exclude)
			if err != nil {
				return nil, err
			}
			if spurPath == nil {
				continue
			}

			totalNodes := append(append([]types.RecordID{}, rootPath[:len(rootPath)-1]...), spurPath.Nodes...)
			onPath := make(map[types.RecordID]bool, len(totalNodes))
			looped := false
			for _, n := range totalNodes {
				if onPath[n] {
					looped = true
					break
				}
				onPath[n] = true
			}
			if looped {
				continue
			}
			totalEdges := append(append([]*types.Edge{}, prevPath.Edges[:i]...), spurPath.Edges...)
			totalWeight := 1.0
			for _, ed := range totalEdges {
				totalWeight *= float64(ed.Weight)
			}
			candidate := &Path{Nodes: totalNodes, Edges: totalEdges, TotalWeight: totalWeight, Length: len(totalEdges)}

			key := pathKey(candidate)
			if !seen[key] {
				seen[key] = true
				candidates = append(candidates, candidate)
			}
		}

		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].TotalWeight > candidates[b].TotalWeight })
		result = append(result, candidates[0])
		candidates = candidates[1:]
	}

	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

func pathKey(p *Path) string {
	s := ""
	for _, n := range p.Nodes {
		s += n.String() + "|"
	}
	return s
}

func equalPrefix(a, b []types.RecordID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
