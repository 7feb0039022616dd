package graph

import (
	"context"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

// adjEdge is one entry in a node's outgoing or incoming adjacency list.
type adjEdge struct {
	EdgeID   types.RecordID
	Target   types.RecordID
	Relation string
	Weight   float32
}

// adjEntry is the cached adjacency for a single node, tagged with the
// graph_version it was built against (spec.md §4.5 "Adjacency cache").
type adjEntry struct {
	outgoing []adjEdge
	incoming []adjEdge
	version  uint64
}

// adjacencyCache is a lazily-populated, version-invalidated cache of node
// adjacency lists backed by ristretto so memory use stays bounded under
// cache pressure instead of growing an unbounded map forever.
type adjacencyCache struct {
	engine storage.Engine
	cache  *ristretto.Cache[types.RecordID, *adjEntry]
	mu     sync.Mutex // serializes population of a single key, not reads
}

func newAdjacencyCache(engine storage.Engine) (*adjacencyCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[types.RecordID, *adjEntry]{
		NumCounters: 1e6,
		MaxCost:     1 << 26, // 64 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &adjacencyCache{engine: engine, cache: c}, nil
}

// get returns the adjacency for id, refreshing it from storage if absent
// or stale relative to the engine's current graph_version.
func (a *adjacencyCache) get(ctx context.Context, id types.RecordID) (*adjEntry, error) {
	currentVersion := a.engine.GraphVersion()

	if entry, ok := a.cache.Get(id); ok && entry.version == currentVersion {
		return entry, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-check: another goroutine may have refreshed while we waited.
	if entry, ok := a.cache.Get(id); ok && entry.version == currentVersion {
		return entry, nil
	}

	out, err := a.engine.EdgesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := a.engine.EdgesTo(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := &adjEntry{
		outgoing: make([]adjEdge, 0, len(out)),
		incoming: make([]adjEdge, 0, len(in)),
		version:  a.engine.GraphVersion(),
	}
	for _, e := range out {
		entry.outgoing = append(entry.outgoing, adjEdge{EdgeID: e.ID, Target: e.To, Relation: e.Relation, Weight: e.Weight})
	}
	for _, e := range in {
		entry.incoming = append(entry.incoming, adjEdge{EdgeID: e.ID, Target: e.From, Relation: e.Relation, Weight: e.Weight})
	}

	cost := int64((len(entry.outgoing) + len(entry.incoming)) * 64)
	a.cache.Set(id, entry, cost)
	a.cache.Wait()

	return entry, nil
}

// invalidate drops a specific node's cached adjacency without a full
// flush. No code in this module calls it.
func (a *adjacencyCache) invalidate(id types.RecordID) {
	a.cache.Del(id)
}
