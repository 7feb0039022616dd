// Package linkpredict implements topological link-prediction heuristics:
// Common Neighbors, Jaccard, Adamic-Adar, Preferential Attachment, and
// Resource Allocation. They give a structure-only signal, exposed through
// graph.TopologyHints; pkg/autolinker (spec.md §4.7) does not use them, and
// its rules keep their own fixed weights.
package linkpredict

import (
	"context"
	"math"
	"sort"

	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

// Graph is an undirected (or directed, caller's choice) adjacency map.
type Graph map[types.RecordID]NodeSet

// NodeSet is a set of node ids.
type NodeSet map[types.RecordID]struct{}

func (ns NodeSet) Contains(id types.RecordID) bool { _, ok := ns[id]; return ok }
func (ns NodeSet) Size() int                       { return len(ns) }

func (g Graph) Degree(node types.RecordID) int { return len(g[node]) }
func (g Graph) Neighbors(node types.RecordID) NodeSet { return g[node] }

// Prediction is a candidate edge with an algorithm-specific score; scores
// are not comparable across algorithms without normalizing first.
type Prediction struct {
	TargetID  types.RecordID
	Score     float64
	Algorithm string
}

// BuildGraph constructs an in-memory undirected adjacency map from storage
// by streaming every live edge once.
func BuildGraph(ctx context.Context, engine storage.Engine) (Graph, error) {
	g := make(Graph)
	err := engine.StreamEdges(ctx, func(e *types.Edge) error {
		if g[e.From] == nil {
			g[e.From] = make(NodeSet)
		}
		if g[e.To] == nil {
			g[e.To] = make(NodeSet)
		}
		g[e.From][e.To] = struct{}{}
		g[e.To][e.From] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CommonNeighbors scores candidates by |N(u) ∩ N(v)|.
func CommonNeighbors(g Graph, source types.RecordID, topK int) []Prediction {
	neighbors := g[source]
	if len(neighbors) == 0 {
		return nil
	}
	scores := make(map[types.RecordID]float64)
	for neighbor := range neighbors {
		for candidate := range g[neighbor] {
			if candidate == source || neighbors.Contains(candidate) {
				continue
			}
			scores[candidate]++
		}
	}
	return topKPredictions(scores, topK, "common_neighbors")
}

// Jaccard scores candidates by |N(u) ∩ N(v)| / |N(u) ∪ N(v)|.
func Jaccard(g Graph, source types.RecordID, topK int) []Prediction {
	neighbors := g[source]
	if len(neighbors) == 0 {
		return nil
	}
	candidates := candidateSet(g, source, neighbors)
	scores := make(map[types.RecordID]float64, len(candidates))
	for candidate := range candidates {
		other := g[candidate]
		intersection := 0
		for n := range neighbors {
			if other.Contains(n) {
				intersection++
			}
		}
		union := len(neighbors) + len(other) - intersection
		if union > 0 {
			scores[candidate] = float64(intersection) / float64(union)
		}
	}
	return topKPredictions(scores, topK, "jaccard")
}

// AdamicAdar weighs each common neighbor by 1/log(degree) so rare shared
// connections count more than popular ones.
func AdamicAdar(g Graph, source types.RecordID, topK int) []Prediction {
	neighbors := g[source]
	if len(neighbors) == 0 {
		return nil
	}
	candidates := candidateSet(g, source, neighbors)
	scores := make(map[types.RecordID]float64, len(candidates))
	for candidate := range candidates {
		other := g[candidate]
		var sum float64
		for n := range neighbors {
			if !other.Contains(n) {
				continue
			}
			deg := g.Degree(n)
			if deg > 1 {
				sum += 1.0 / math.Log(float64(deg))
			}
		}
		if sum > 0 {
			scores[candidate] = sum
		}
	}
	return topKPredictions(scores, topK, "adamic_adar")
}

// PreferentialAttachment scores candidates by |N(u)| * |N(v)|: popular
// nodes tend to attract more connections.
func PreferentialAttachment(g Graph, source types.RecordID, topK int) []Prediction {
	neighbors := g[source]
	if len(neighbors) == 0 {
		return nil
	}
	candidates := candidateSet(g, source, neighbors)
	scores := make(map[types.RecordID]float64, len(candidates))
	for candidate := range candidates {
		scores[candidate] = float64(len(neighbors)) * float64(g.Degree(candidate))
	}
	return topKPredictions(scores, topK, "preferential_attachment")
}

// ResourceAllocation weighs each common neighbor by 1/degree, modeling
// each shared connection as a fixed "resource" split among its neighbors.
func ResourceAllocation(g Graph, source types.RecordID, topK int) []Prediction {
	neighbors := g[source]
	if len(neighbors) == 0 {
		return nil
	}
	candidates := candidateSet(g, source, neighbors)
	scores := make(map[types.RecordID]float64, len(candidates))
	for candidate := range candidates {
		other := g[candidate]
		var sum float64
		for n := range neighbors {
			if !other.Contains(n) {
				continue
			}
			if deg := g.Degree(n); deg > 0 {
				sum += 1.0 / float64(deg)
			}
		}
		if sum > 0 {
			scores[candidate] = sum
		}
	}
	return topKPredictions(scores, topK, "resource_allocation")
}

func candidateSet(g Graph, source types.RecordID, neighbors NodeSet) NodeSet {
	candidates := make(NodeSet)
	for neighbor := range neighbors {
		for candidate := range g[neighbor] {
			if candidate != source && !neighbors.Contains(candidate) {
				candidates[candidate] = struct{}{}
			}
		}
	}
	return candidates
}

func topKPredictions(scores map[types.RecordID]float64, k int, algorithm string) []Prediction {
	out := make([]Prediction, 0, len(scores))
	for id, score := range scores {
		out = append(out, Prediction{TargetID: id, Score: score, Algorithm: algorithm})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TargetID.Less(out[j].TargetID)
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
