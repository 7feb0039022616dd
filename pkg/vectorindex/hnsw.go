// Package vectorindex implements the approximate-nearest-neighbor search
// over node embeddings spec.md §4.4 describes: a Hierarchical Navigable
// Small World graph with insert/remove/search, filtered search, and
// persistence with rebuild-from-source recovery.
//
// The index is an ephemeral cache, not a source of truth (spec.md §1
// Non-goals: "persistent durability of the ANN graph itself"). Storage is
// authoritative; Save/Load/Rebuild exist purely to avoid re-embedding and
// re-inserting every node on every process start.
package vectorindex

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/orneryd/knowgraph/pkg/math/vector"
	"github.com/orneryd/knowgraph/pkg/types"
)

// ErrDimensionMismatch is returned when a caller inserts or queries with a
// vector whose length doesn't match the index's configured dimension.
var ErrDimensionMismatch = errors.New("vectorindex: vector dimension mismatch")

// Config holds the HNSW build/query parameters from spec.md §4.4.
type Config struct {
	M               int     // max connections per layer (default 16)
	EfConstruction  int     // build-time candidate list size (default 200)
	EfSearch        int     // query-time candidate list size (default 100)
	LevelMultiplier float64 // level assignment multiplier, 1/ln(M)
}

// DefaultConfig returns the spec's default HNSW parameters.
func DefaultConfig() Config {
	return Config{
		M:               16,
		EfConstruction:  200,
		EfSearch:        100,
		LevelMultiplier: 1.0 / math.Log(16.0),
	}
}

type hnswNode struct {
	id          types.RecordID
	vector      []float32
	kind        string
	sourceAgent string
	level       int
	neighbors   [][]types.RecordID
	mu          sync.RWMutex
}

// Filter narrows a search to candidates matching Kinds/SourceAgent and
// excludes ExcludeIDs. It is applied to the EfSearch candidates that the
// layer-0 search returns, not during graph descent: non-matching vectors
// still take candidate slots, so a selective filter can return fewer than
// k results even when more matching vectors are indexed.
type Filter struct {
	Kinds       []string
	ExcludeIDs  []types.RecordID
	SourceAgent string
}

func (f Filter) matches(n *hnswNode) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == n.kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SourceAgent != "" && f.SourceAgent != n.sourceAgent {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if id == n.id {
			return false
		}
	}
	return true
}

// SearchResult is one hit from Search/SearchThreshold/SearchBatch.
type SearchResult struct {
	ID       types.RecordID
	Score    float64 // cosine similarity, [0, 1]
	Distance float64 // 1 - Score
}

// Index is the HNSW approximate-nearest-neighbor index.
type Index struct {
	config     Config
	dimensions int
	mu         sync.RWMutex
	nodes      map[types.RecordID]*hnswNode
	entryPoint types.RecordID
	maxLevel   int
}

// New creates an index over vectors of the given dimension.
func New(dimensions int, config Config) *Index {
	if config.M == 0 {
		config = DefaultConfig()
	}
	return &Index{
		config:     config,
		dimensions: dimensions,
		nodes:      make(map[types.RecordID]*hnswNode),
	}
}

// Insert adds (or replaces) id's vector, tagged with the kind/sourceAgent
// metadata Filter needs at query time.
func (idx *Index) Insert(id types.RecordID, vec []float32, kind, sourceAgent string) error {
	if len(vec) != idx.dimensions {
		return ErrDimensionMismatch
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	normalized := vector.Normalize(vec)
	level := idx.randomLevel()

	node := &hnswNode{
		id:          id,
		vector:      normalized,
		kind:        kind,
		sourceAgent: sourceAgent,
		level:       level,
		neighbors:   make([][]types.RecordID, level+1),
	}
	for i := range node.neighbors {
		node.neighbors[i] = make([]types.RecordID, 0, idx.config.M)
	}

	idx.nodes[id] = node

	if idx.entryPoint.IsZero() {
		idx.entryPoint = id
		idx.maxLevel = level
		return nil
	}

	ep := idx.entryPoint
	epLevel := idx.nodes[ep].level

	for l := epLevel; l > level; l-- {
		ep = idx.searchLayerSingle(normalized, ep, l)
	}

	for l := min(level, epLevel); l >= 0; l-- {
		candidates := idx.searchLayer(normalized, ep, idx.config.EfConstruction, l)
		neighbors := idx.selectNeighbors(normalized, candidates, idx.config.M)
		node.neighbors[l] = neighbors

		for _, neighborID := range neighbors {
			neighbor := idx.nodes[neighborID]
			neighbor.mu.Lock()
			if len(neighbor.neighbors) > l {
				if len(neighbor.neighbors[l]) < idx.config.M {
					neighbor.neighbors[l] = append(neighbor.neighbors[l], id)
				} else {
					allNeighbors := append(append([]types.RecordID{}, neighbor.neighbors[l]...), id)
					neighbor.neighbors[l] = idx.selectNeighbors(neighbor.vector, allNeighbors, idx.config.M)
				}
			}
			neighbor.mu.Unlock()
		}

		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}

	if level > idx.maxLevel {
		idx.entryPoint = id
		idx.maxLevel = level
	}

	return nil
}

// Remove deletes id from the index. Idempotent: removing an absent id is
// a no-op (spec.md §4.4).
func (idx *Index) Remove(id types.RecordID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	node, exists := idx.nodes[id]
	if !exists {
		return
	}

	for l := 0; l <= node.level; l++ {
		for _, neighborID := range node.neighbors[l] {
			if neighbor, ok := idx.nodes[neighborID]; ok {
				neighbor.mu.Lock()
				if len(neighbor.neighbors) > l {
					kept := neighbor.neighbors[l][:0]
					for _, nid := range neighbor.neighbors[l] {
						if nid != id {
							kept = append(kept, nid)
						}
					}
					neighbor.neighbors[l] = kept
				}
				neighbor.mu.Unlock()
			}
		}
	}

	delete(idx.nodes, id)

	if idx.entryPoint == id {
		idx.entryPoint = types.Zero
		idx.maxLevel = 0
		for nid, n := range idx.nodes {
			if idx.entryPoint.IsZero() || n.level > idx.maxLevel {
				idx.maxLevel = n.level
				idx.entryPoint = nid
			}
		}
	}
}

// Search returns up to k nearest neighbors of query, narrowed by an
// optional filter applied to the layer-0 candidate list after descent.
func (idx *Index) Search(ctx context.Context, query []float32, k int, filter *Filter) ([]SearchResult, error) {
	if len(query) != idx.dimensions {
		return nil, ErrDimensionMismatch
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.nodes) == 0 {
		return []SearchResult{}, nil
	}

	normalized := vector.Normalize(query)
	ep := idx.entryPoint

	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.searchLayerSingle(normalized, ep, l)
	}

	candidates := idx.searchLayer(normalized, ep, idx.config.EfSearch, 0)

	results := make([]SearchResult, 0, k)
	for _, candidateID := range candidates {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		node := idx.nodes[candidateID]
		if filter != nil && !filter.matches(node) {
			continue
		}
		score := float64(vector.DotProduct(normalized, node.vector))
		if score < 0 {
			score = 0
		}
		results = append(results, SearchResult{ID: candidateID, Score: score, Distance: 1 - score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SearchThreshold returns the results with score ≥ theta among the
// candidates Search examines. Search looks at no more than EfSearch
// candidates, so at most EfSearch results come back and matches outside
// that candidate set are not returned. Used by the auto-linker's dedup
// pass (spec.md §4.7).
func (idx *Index) SearchThreshold(ctx context.Context, query []float32, theta float64, filter *Filter) ([]SearchResult, error) {
	all, err := idx.Search(ctx, query, idx.Len(), filter)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.Score >= theta {
			out = append(out, r)
		}
	}
	return out, nil
}

// SearchBatch runs Search independently for each query; batching exists
// purely for caller amortisation, not correctness.
func (idx *Index) SearchBatch(ctx context.Context, queries [][]float32, k int, filter *Filter) ([][]SearchResult, error) {
	out := make([][]SearchResult, len(queries))
	for i, q := range queries {
		r, err := idx.Search(ctx, q, k, filter)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Len returns the number of vectors currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

func (idx *Index) searchLayerSingle(query []float32, entryID types.RecordID, level int) types.RecordID {
	current := entryID
	currentDist := 1.0 - float64(vector.DotProduct(query, idx.nodes[current].vector))

	for {
		changed := false
		node := idx.nodes[current]
		node.mu.RLock()
		neighbors := node.neighbors[level]
		node.mu.RUnlock()

		for _, neighborID := range neighbors {
			neighbor := idx.nodes[neighborID]
			dist := 1.0 - float64(vector.DotProduct(query, neighbor.vector))
			if dist < currentDist {
				current = neighborID
				currentDist = dist
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return current
}

func (idx *Index) searchLayer(query []float32, entryID types.RecordID, ef int, level int) []types.RecordID {
	visited := map[types.RecordID]bool{entryID: true}

	candidates := &distHeap{}
	heap.Init(candidates)
	results := &distHeap{}
	heap.Init(results)

	entryDist := 1.0 - float64(vector.DotProduct(query, idx.nodes[entryID].vector))
	heap.Push(candidates, distItem{id: entryID, dist: entryDist, isMax: false})
	heap.Push(results, distItem{id: entryID, dist: entryDist, isMax: true})

	for candidates.Len() > 0 {
		closest := heap.Pop(candidates).(distItem)

		if results.Len() >= ef {
			furthest := (*results)[0]
			if closest.dist > furthest.dist {
				break
			}
		}

		node := idx.nodes[closest.id]
		node.mu.RLock()
		neighbors := node.neighbors[level]
		node.mu.RUnlock()

		for _, neighborID := range neighbors {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			neighbor := idx.nodes[neighborID]
			dist := 1.0 - float64(vector.DotProduct(query, neighbor.vector))

			if results.Len() < ef || dist < (*results)[0].dist {
				heap.Push(candidates, distItem{id: neighborID, dist: dist, isMax: false})
				heap.Push(results, distItem{id: neighborID, dist: dist, isMax: true})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]types.RecordID, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item := heap.Pop(results).(distItem)
		out[i] = item.id
	}
	return out
}

func (idx *Index) selectNeighbors(query []float32, candidates []types.RecordID, m int) []types.RecordID {
	if len(candidates) <= m {
		return candidates
	}

	type distNode struct {
		id   types.RecordID
		dist float64
	}
	dists := make([]distNode, len(candidates))
	for i, cid := range candidates {
		dists[i] = distNode{id: cid, dist: 1.0 - float64(vector.DotProduct(query, idx.nodes[cid].vector))}
	}

	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })

	result := make([]types.RecordID, m)
	for i := 0; i < m; i++ {
		result[i] = dists[i].id
	}
	return result
}

func (idx *Index) randomLevel() int {
	r := rand.Float64()
	return int(-math.Log(r) * idx.config.LevelMultiplier)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type distItem struct {
	id    types.RecordID
	dist  float64
	isMax bool
}

type distHeap []distItem

func (dh distHeap) Len() int { return len(dh) }
func (dh distHeap) Less(i, j int) bool {
	if dh[i].isMax {
		return dh[i].dist > dh[j].dist
	}
	return dh[i].dist < dh[j].dist
}
func (dh distHeap) Swap(i, j int) { dh[i], dh[j] = dh[j], dh[i] }

func (dh *distHeap) Push(x interface{}) { *dh = append(*dh, x.(distItem)) }

func (dh *distHeap) Pop() interface{} {
	old := *dh
	n := len(old)
	x := old[n-1]
	*dh = old[:n-1]
	return x
}
