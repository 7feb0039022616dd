// Package hybrid implements the hybrid retriever (spec.md §4.6): a blend of
// vector similarity and graph proximity to a set of caller-supplied anchor
// nodes, so retrieval favors candidates that are both semantically close to
// the query and structurally close to what the agent is already looking at.
package hybrid

import (
	"context"
	"sort"

	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

// DefaultOversample is the minimum multiple of Limit used to widen the
// initial vector search, leaving room for graph re-ranking to change the
// final top-Limit set (spec.md §4.6 step 2).
const DefaultOversample = 3

// DefaultMaxAnchorDepth bounds how far ShortestPath will search before a
// candidate is treated as unreachable from an anchor.
const DefaultMaxAnchorDepth = 6

// Request parameterises a hybrid query.
type Request struct {
	QueryText      string
	AnchorIDs      []types.RecordID
	Alpha          float32 // vector_weight, in [0,1]
	Limit          int
	Oversample     int // defaults to DefaultOversample if <= 0
	Filter         *vectorindex.Filter
	MaxAnchorDepth int // defaults to DefaultMaxAnchorDepth if <= 0
}

// Result is one scored candidate, carrying the component scores spec.md
// §4.6 requires callers be able to inspect.
type Result struct {
	Node               *types.Node
	VectorScore        float64
	GraphScore         float64
	Combined           float64
	NearestAnchor      types.RecordID
	NearestAnchorDepth int
}

// Retriever blends pkg/vectorindex similarity search with pkg/graph shortest
// path distance to a set of anchors.
type Retriever struct {
	storage  storage.Engine
	index    *vectorindex.Index
	graph    *graph.Engine
	embedder embedding.Embedder
}

// New builds a Retriever over the given collaborators.
func New(store storage.Engine, index *vectorindex.Index, g *graph.Engine, embedder embedding.Embedder) *Retriever {
	return &Retriever{storage: store, index: index, graph: g, embedder: embedder}
}

// Query runs the spec.md §4.6 algorithm: embed the query text, oversample
// the vector index, re-rank by a weighted blend of vector similarity and
// inverse shortest-path distance to the nearest anchor, and return the top
// Limit results.
func (r *Retriever) Query(ctx context.Context, req Request) ([]Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	oversample := req.Oversample
	if oversample <= 0 {
		oversample = DefaultOversample
	}
	maxDepth := req.MaxAnchorDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxAnchorDepth
	}

	q, err := r.embedder.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}

	candidates, err := r.index.Search(ctx, q, limit*oversample, req.Filter)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		node, err := r.storage.GetNode(ctx, c.ID, false)
		if err != nil {
			continue
		}

		graphScore, nearest, depth := r.anchorScore(ctx, c.ID, req.AnchorIDs, maxDepth)
		alpha := float64(req.Alpha)
		combined := alpha*c.Score + (1-alpha)*graphScore

		results = append(results, Result{
			Node:               node,
			VectorScore:        c.Score,
			GraphScore:         graphScore,
			Combined:           combined,
			NearestAnchor:      nearest,
			NearestAnchorDepth: depth,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].Node.CreatedAt.Before(results[j].Node.CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// anchorScore returns max over anchors of 1/(1+shortest_path_length), the
// anchor that achieved it, and that anchor's path length. A candidate
// unreachable from every anchor within maxDepth scores 0.
func (r *Retriever) anchorScore(ctx context.Context, candidate types.RecordID, anchors []types.RecordID, maxDepth int) (float64, types.RecordID, int) {
	var best float64
	var bestAnchor types.RecordID
	bestDepth := -1

	for _, anchor := range anchors {
		if anchor == candidate {
			return 1.0, anchor, 0
		}

		path, err := r.graph.ShortestPath(ctx, candidate, anchor, graph.Both)
		if err != nil || path == nil {
			continue
		}
		if path.Length > maxDepth {
			continue
		}

		score := 1.0 / (1.0 + float64(path.Length))
		if score > best {
			best = score
			bestAnchor = anchor
			bestDepth = path.Length
		}
	}

	return best, bestAnchor, bestDepth
}
