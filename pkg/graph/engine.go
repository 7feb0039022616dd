package graph

import (
	"context"
	"time"

	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

// Budgets bound every traversal (spec.md §4.5 "Budgets").
type Budgets struct {
	MaxVisited          int
	MaxWallClock        time.Duration
	MaxNewNodesPerLevel int
}

// DefaultBudgets returns the spec's default traversal limits.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxVisited:          10000,
		MaxWallClock:        5 * time.Second,
		MaxNewNodesPerLevel: 1000,
	}
}

// Engine runs traversals and pathfinding queries over a storage engine.
type Engine struct {
	storage storage.Engine
	adj     *adjacencyCache
	budgets Budgets
}

// New creates a graph engine over the given storage engine.
func New(store storage.Engine) (*Engine, error) {
	adj, err := newAdjacencyCache(store)
	if err != nil {
		return nil, err
	}
	return &Engine{storage: store, adj: adj, budgets: DefaultBudgets()}, nil
}

// WithBudgets overrides the default traversal budgets; used in tests to
// exercise truncation deterministically without building 10,000 nodes.
func (e *Engine) WithBudgets(b Budgets) *Engine {
	e.budgets = b
	return e
}

func (e *Engine) neighborsOf(ctx context.Context, id types.RecordID, dir Direction) ([]adjEdge, error) {
	entry, err := e.adj.get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch dir {
	case Outgoing:
		return entry.outgoing, nil
	case Incoming:
		return entry.incoming, nil
	default:
		combined := make([]adjEdge, 0, len(entry.outgoing)+len(entry.incoming))
		combined = append(combined, entry.outgoing...)
		combined = append(combined, entry.incoming...)
		return combined, nil
	}
}

func (e *Engine) fetchNode(ctx context.Context, id types.RecordID) (*types.Node, error) {
	return e.storage.GetNode(ctx, id, false)
}
