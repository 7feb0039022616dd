package graph

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"github.com/orneryd/knowgraph/pkg/types"
)

type frontierItem struct {
	id    types.RecordID
	depth uint32
}

// weightedItem is a traversal frontier entry ordered by the edge weight
// that reached it (spec.md §4.5 "Weighted (greedy best-first)").
type weightedItem struct {
	id     types.RecordID
	depth  uint32
	weight float32
}

type weightedHeap []weightedItem

func (h weightedHeap) Len() int { return len(h) }
func (h weightedHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight > h[j].weight // higher weight first
	}
	return h[i].id.Less(h[j].id) // deterministic tie-break
}
func (h weightedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *weightedHeap) Push(x interface{}) { *h = append(*h, x.(weightedItem)) }
func (h *weightedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Traverse runs req.Strategy starting from req.Start and returns the
// resulting Subgraph, honoring the engine's budgets.
func (e *Engine) Traverse(ctx context.Context, req Request) (*Subgraph, error) {
	switch req.Strategy {
	case DFS:
		return e.traverseDFS(ctx, req)
	case Weighted:
		return e.traverseWeighted(ctx, req)
	default:
		return e.traverseBFS(ctx, req)
	}
}

func (e *Engine) edgeAllowed(req Request, relation string, weight float32) bool {
	if !req.matchesRelation(relation) {
		return false
	}
	if weight < req.MinWeight {
		return false
	}
	return true
}

func (e *Engine) maybeAddNode(ctx context.Context, sg *Subgraph, req Request, id types.RecordID, depth uint32, isStart bool) error {
	if isStart && !req.IncludeStart {
		return nil
	}
	node, err := e.fetchNode(ctx, id)
	if err != nil {
		return nil // skip nodes that vanished or were tombstoned mid-traversal
	}
	if !req.matchesKind(node.Kind) {
		return nil
	}
	if req.CreatedAfter != nil && node.CreatedAt.UnixNano() <= *req.CreatedAfter {
		return nil
	}
	sg.Nodes[id] = node
	if existing, ok := sg.Depth[id]; !ok || depth < existing {
		sg.Depth[id] = depth
	}
	return nil
}

// traverseBFS assigns each node the minimum depth from any start (spec.md
// §4.5 "BFS: FIFO frontier; assigns the minimum depth from any start").
func (e *Engine) traverseBFS(ctx context.Context, req Request) (*Subgraph, error) {
	sg := newSubgraph()
	deadline := time.Now().Add(e.budgets.MaxWallClock)

	visited := make(map[types.RecordID]bool)
	var queue []frontierItem
	for _, s := range req.Start {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, frontierItem{id: s, depth: 0})
		}
	}

	for len(queue) > 0 {
		if time.Now().After(deadline) {
			sg.Truncated = true
			break
		}
		if sg.VisitedCount >= e.budgets.MaxVisited {
			sg.Truncated = true
			break
		}

		item := queue[0]
		queue = queue[1:]
		sg.VisitedCount++

		isStart := item.depth == 0
		if err := e.maybeAddNode(ctx, sg, req, item.id, item.depth, isStart); err != nil {
			return sg, err
		}

		if req.MaxDepth > 0 && int(item.depth) >= req.MaxDepth {
			continue
		}

		edges, err := e.neighborsOf(ctx, item.id, req.Direction)
		if err != nil {
			return sg, err
		}

		newAtLevel := 0
		sortEdgesDeterministic(edges)
		for _, adj := range edges {
			if !e.edgeAllowed(req, adj.Relation, adj.Weight) {
				continue
			}
			sg.Edges = append(sg.Edges, &types.Edge{ID: adj.EdgeID, Relation: adj.Relation, Weight: adj.Weight})
			if visited[adj.Target] {
				continue
			}
			visited[adj.Target] = true
			queue = append(queue, frontierItem{id: adj.Target, depth: item.depth + 1})
			newAtLevel++
			if newAtLevel > e.budgets.MaxNewNodesPerLevel {
				sg.Truncated = true
				break
			}
		}
		if req.Limit > 0 && len(sg.Nodes) >= req.Limit {
			sg.Truncated = len(queue) > 0
			break
		}
	}

	return sg, nil
}

// traverseDFS records depth as the length of the first path found (spec.md
// §4.5 "used for path chains, not for distance metrics").
func (e *Engine) traverseDFS(ctx context.Context, req Request) (*Subgraph, error) {
	sg := newSubgraph()
	deadline := time.Now().Add(e.budgets.MaxWallClock)

	visited := make(map[types.RecordID]bool)
	type stackItem struct {
		id    types.RecordID
		depth uint32
	}
	var stack []stackItem
	starts := append([]types.RecordID{}, req.Start...)
	sortIDsDeterministic(starts)
	for i := len(starts) - 1; i >= 0; i-- {
		stack = append(stack, stackItem{id: starts[i], depth: 0})
	}

	for len(stack) > 0 {
		if time.Now().After(deadline) {
			sg.Truncated = true
			break
		}
		if sg.VisitedCount >= e.budgets.MaxVisited {
			sg.Truncated = true
			break
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[item.id] {
			continue
		}
		visited[item.id] = true
		sg.VisitedCount++

		if err := e.maybeAddNode(ctx, sg, req, item.id, item.depth, item.depth == 0); err != nil {
			return sg, err
		}

		if req.MaxDepth > 0 && int(item.depth) >= req.MaxDepth {
			continue
		}

		edges, err := e.neighborsOf(ctx, item.id, req.Direction)
		if err != nil {
			return sg, err
		}
		sortEdgesDeterministic(edges)

		newAtLevel := 0
		for i := len(edges) - 1; i >= 0; i-- {
			adj := edges[i]
			if !e.edgeAllowed(req, adj.Relation, adj.Weight) {
				continue
			}
			sg.Edges = append(sg.Edges, &types.Edge{ID: adj.EdgeID, Relation: adj.Relation, Weight: adj.Weight})
			if visited[adj.Target] {
				continue
			}
			stack = append(stack, stackItem{id: adj.Target, depth: item.depth + 1})
			newAtLevel++
			if newAtLevel > e.budgets.MaxNewNodesPerLevel {
				sg.Truncated = true
				break
			}
		}
		if req.Limit > 0 && len(sg.Nodes) >= req.Limit {
			sg.Truncated = len(stack) > 0
			break
		}
	}

	return sg, nil
}

// traverseWeighted visits the strongest neighbour at each step (spec.md
// §4.5 "priority queue keyed by negative edge weight").
func (e *Engine) traverseWeighted(ctx context.Context, req Request) (*Subgraph, error) {
	sg := newSubgraph()
	deadline := time.Now().Add(e.budgets.MaxWallClock)

	visited := make(map[types.RecordID]bool)
	pq := &weightedHeap{}
	heap.Init(pq)
	starts := append([]types.RecordID{}, req.Start...)
	sortIDsDeterministic(starts)
	for _, s := range starts {
		heap.Push(pq, weightedItem{id: s, depth: 0, weight: 0})
	}

	for pq.Len() > 0 {
		if time.Now().After(deadline) {
			sg.Truncated = true
			break
		}
		if sg.VisitedCount >= e.budgets.MaxVisited {
			sg.Truncated = true
			break
		}

		item := heap.Pop(pq).(weightedItem)
		if visited[item.id] {
			continue
		}
		visited[item.id] = true
		sg.VisitedCount++

		if err := e.maybeAddNode(ctx, sg, req, item.id, item.depth, item.depth == 0); err != nil {
			return sg, err
		}

		if req.MaxDepth > 0 && int(item.depth) >= req.MaxDepth {
			continue
		}

		edges, err := e.neighborsOf(ctx, item.id, req.Direction)
		if err != nil {
			return sg, err
		}

		newAtLevel := 0
		for _, adj := range edges {
			if !e.edgeAllowed(req, adj.Relation, adj.Weight) {
				continue
			}
			sg.Edges = append(sg.Edges, &types.Edge{ID: adj.EdgeID, Relation: adj.Relation, Weight: adj.Weight})
			if visited[adj.Target] {
				continue
			}
			heap.Push(pq, weightedItem{id: adj.Target, depth: item.depth + 1, weight: adj.Weight})
			newAtLevel++
			if newAtLevel > e.budgets.MaxNewNodesPerLevel {
				sg.Truncated = true
				break
			}
		}
		if req.Limit > 0 && len(sg.Nodes) >= req.Limit {
			sg.Truncated = pq.Len() > 0
			break
		}
	}

	return sg, nil
}

func sortEdgesDeterministic(edges []adjEdge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].Target.Less(edges[j].Target) })
}

func sortIDsDeterministic(ids []types.RecordID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
