package briefing

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/hybrid"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

// agentNode finds the node of kind "agent" that represents agentID, if one
// has been ingested. Many sections anchor their search on it; its absence
// isn't an error, sections simply degrade to agent-owned-node queries.
func (e *Engine) agentNode(ctx context.Context, agentID string) *types.Node {
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{Kinds: []string{"agent"}, SourceAgent: agentID, Limit: 1})
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// recentOwnedNodes returns agentID's own nodes created or updated within
// window, newest first.
func (e *Engine) recentOwnedNodes(ctx context.Context, agentID string, window time.Duration) ([]*types.Node, error) {
	since := time.Now().Add(-window)
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{SourceAgent: agentID, UpdatedAfter: since})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt) })
	return nodes, nil
}

// identitySection: spec.md §4.8 "Identity" — the agent node itself plus
// 1-hop incoming applies_to neighbours filtered to {preference, fact}.
func (e *Engine) identitySection(ctx context.Context, agentID string) Section {
	sec := Section{Name: "Identity"}
	agent := e.agentNode(ctx, agentID)
	if agent == nil {
		return sec
	}
	sec.Items = append(sec.Items, Item{NodeID: agent.ID, Kind: agent.Kind, Title: agent.Title, Score: 1, Reason: "agent identity node"})

	neighbors, err := e.graph.Neighbors(ctx, agent.ID, graph.Incoming, []string{"applies_to"})
	if err != nil {
		return sec
	}
	for _, n := range neighbors {
		if n.Node.Kind != "preference" && n.Node.Kind != "fact" {
			continue
		}
		sec.Items = append(sec.Items, Item{NodeID: n.Node.ID, Kind: n.Node.Kind, Title: n.Node.Title, Score: float64(n.Weight), Reason: "applies_to " + agentID})
	}
	return sec
}

// activeContextSection: hybrid search anchored on the agent's last-48h
// nodes, query = concatenation of their titles, alpha=0.5, kinds
// {decision, fact, event} (spec.md §4.8 "Active context").
func (e *Engine) activeContextSection(ctx context.Context, agentID string, cfg Config) Section {
	sec := Section{Name: "Active context"}
	recent, err := e.recentOwnedNodes(ctx, agentID, cfg.RecentWindow)
	if err != nil || len(recent) == 0 || e.hybrid == nil {
		return sec
	}

	anchors := make([]types.RecordID, 0, len(recent))
	titles := make([]string, 0, len(recent))
	for _, n := range recent {
		anchors = append(anchors, n.ID)
		titles = append(titles, n.Title)
	}

	results, err := e.hybrid.Query(ctx, hybrid.Request{
		QueryText: strings.Join(titles, " "),
		AnchorIDs: anchors,
		Alpha:     0.5,
		Limit:     cfg.MaxItemsPerSection,
		Filter:    &vectorindex.Filter{Kinds: []string{"decision", "fact", "event"}},
	})
	if err != nil {
		return sec
	}
	for _, r := range results {
		sec.Items = append(sec.Items, Item{NodeID: r.Node.ID, Kind: r.Node.Kind, Title: r.Node.Title, Score: r.Combined, Reason: "active context"})
	}
	return sec
}

// patternsSection: weighted traversal from the agent node, depth 2,
// incoming {applies_to, instance_of}, kinds {pattern} (spec.md §4.8
// "Patterns & lessons").
func (e *Engine) patternsSection(ctx context.Context, agentID string) Section {
	sec := Section{Name: "Patterns & lessons"}
	agent := e.agentNode(ctx, agentID)
	if agent == nil {
		return sec
	}

	sub, err := e.graph.Traverse(ctx, graph.Request{
		Start: []types.RecordID{agent.ID}, MaxDepth: 2, Direction: graph.Incoming,
		RelationFilter: []string{"applies_to", "instance_of"}, KindFilter: []string{"pattern"},
		Strategy: graph.Weighted,
	})
	if err != nil {
		return sec
	}
	sec.Truncated = sub.Truncated
	for id, node := range sub.Nodes {
		if id == agent.ID {
			continue
		}
		sec.Items = append(sec.Items, Item{NodeID: id, Kind: node.Kind, Title: node.Title, Score: float64(sub.Depth[id]), Reason: "pattern applied"})
	}
	sort.Slice(sec.Items, func(i, j int) bool { return sec.Items[i].Score < sec.Items[j].Score })
	return sec
}

// goalsSection: nodes of kind goal in the agent's scope.
func (e *Engine) goalsSection(ctx context.Context, agentID string) Section {
	sec := Section{Name: "Goals"}
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{Kinds: []string{"goal"}, SourceAgent: agentID})
	if err != nil {
		return sec
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt) })
	for _, n := range nodes {
		sec.Items = append(sec.Items, Item{NodeID: n.ID, Kind: n.Kind, Title: n.Title, Score: float64(n.Importance), Reason: "open goal"})
	}
	return sec
}

// unresolvedSection: depth-3 traversal along contradicts edges, plus
// low-confidence auto-linker edges incident to the agent's own nodes
// (spec.md §4.8 "Unresolved").
func (e *Engine) unresolvedSection(ctx context.Context, agentID string, cfg Config) Section {
	sec := Section{Name: "Unresolved"}

	if agent := e.agentNode(ctx, agentID); agent != nil {
		sub, err := e.graph.Traverse(ctx, graph.Request{
			Start: []types.RecordID{agent.ID}, MaxDepth: 3, Direction: graph.Both,
			RelationFilter: []string{"contradicts"}, Strategy: graph.BFS,
		})
		if err == nil {
			sec.Truncated = sec.Truncated || sub.Truncated
			for id, node := range sub.Nodes {
				if id == agent.ID {
					continue
				}
				sec.Items = append(sec.Items, Item{NodeID: id, Kind: node.Kind, Title: node.Title, Score: 1, Reason: "contradiction"})
			}
		}
	}

	owned, err := e.recentOwnedNodes(ctx, agentID, cfg.RecentWindow)
	if err == nil {
		seen := make(map[types.RecordID]bool)
		for _, item := range sec.Items {
			seen[item.NodeID] = true
		}
		for _, n := range owned {
			lowConf, err := e.lowConfidenceIncidentEdge(ctx, n.ID, cfg.LowConfidenceThreshold)
			if err != nil || lowConf == nil {
				continue
			}
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			sec.Items = append(sec.Items, Item{NodeID: n.ID, Kind: n.Kind, Title: n.Title, Score: float64(lowConf.Weight), Reason: "low-confidence auto-link, needs review"})
		}
	}

	return sec
}

// lowConfidenceIncidentEdge returns the first non-manual edge incident to
// id with weight below threshold, if any.
func (e *Engine) lowConfidenceIncidentEdge(ctx context.Context, id types.RecordID, threshold float32) (*types.Edge, error) {
	out, err := e.storage.EdgesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := e.storage.EdgesTo(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, edge := range append(out, in...) {
		if types.IsManual(edge.Provenance) {
			continue
		}
		if edge.Weight < threshold {
			return edge, nil
		}
	}
	return nil, nil
}

// recentEventsSection: nodes of kind event created within RecentWindow.
func (e *Engine) recentEventsSection(ctx context.Context, agentID string, cfg Config) Section {
	sec := Section{Name: "Recent events"}
	since := time.Now().Add(-cfg.RecentWindow)
	nodes, err := e.storage.ListNodes(ctx, storage.NodeFilter{Kinds: []string{"event"}, SourceAgent: agentID, CreatedAfter: since})
	if err != nil {
		return sec
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].CreatedAt.After(nodes[j].CreatedAt) })
	for _, n := range nodes {
		sec.Items = append(sec.Items, Item{NodeID: n.ID, Kind: n.Kind, Title: n.Title, Score: float64(n.CreatedAt.Unix()), Reason: "recent event"})
	}
	return sec
}
