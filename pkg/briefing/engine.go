// Package briefing implements the briefing engine (spec.md §4.8): given an
// agent_id, it assembles a ranked, de-duplicated, budget-bounded document
// from six named sections, caches the result keyed by (agent_id,
// compact_flag) and gated on the storage engine's graph_version, and
// reinforces every node it serves by bumping access_count and touching its
// incident edges.
package briefing

import (
	"context"
	"log"
	"time"

	"github.com/orneryd/knowgraph/pkg/cache"
	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/hybrid"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

// Engine generates and caches briefings.
type Engine struct {
	storage storage.Engine
	graph   *graph.Engine
	hybrid  *hybrid.Retriever
	cache   *cache.Cache[cacheKey, *cacheValue]
	cfg     Config
	logger  *log.Logger
}

// New builds a briefing Engine. cfg may be the zero value, in which case
// DefaultConfig applies.
func New(store storage.Engine, g *graph.Engine, retriever *hybrid.Retriever, cfg Config, logger *log.Logger) *Engine {
	if cfg.MaxItemsPerSection == 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		storage: store, graph: g, hybrid: retriever, cfg: cfg, logger: logger,
		cache: cache.New[cacheKey, *cacheValue](256, cfg.CacheTTL),
	}
}

// Config returns the engine's active configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Get returns the briefing for agentID, serving from cache when the
// storage engine's graph_version hasn't advanced since it was generated and
// the cache entry hasn't outlived CacheTTL; otherwise it regenerates.
func (e *Engine) Get(ctx context.Context, agentID string, compact bool) (*Briefing, error) {
	key := cacheKey{AgentID: agentID, Compact: compact}
	currentVersion := e.storage.GraphVersion()

	if cached, ok := e.cache.Get(key); ok {
		fresh := cached.graphVersion == currentVersion && time.Since(cached.generatedAt) < e.cfg.CacheTTL
		if fresh {
			return cached.briefing, nil
		}
	}

	b, err := e.generate(ctx, agentID, compact)
	if err != nil {
		return nil, err
	}

	e.reinforce(ctx, b)

	e.cache.Put(key, &cacheValue{briefing: b, generatedAt: b.GeneratedAt, graphVersion: e.storage.GraphVersion()})
	return b, nil
}

// generate runs every section generator, then applies the total-item and
// character budgets (spec.md §4.8 "Budgets").
func (e *Engine) generate(ctx context.Context, agentID string, compact bool) (*Briefing, error) {
	b := &Briefing{AgentID: agentID, Compact: compact, GeneratedAt: time.Now(), GraphVersion: e.storage.GraphVersion()}

	sections := []Section{
		e.identitySection(ctx, agentID),
		e.activeContextSection(ctx, agentID, e.cfg),
		e.patternsSection(ctx, agentID),
		e.goalsSection(ctx, agentID),
		e.unresolvedSection(ctx, agentID, e.cfg),
		e.recentEventsSection(ctx, agentID, e.cfg),
	}

	total := 0
	for i := range sections {
		if len(sections[i].Items) > e.cfg.MaxItemsPerSection {
			sections[i].Items = sections[i].Items[:e.cfg.MaxItemsPerSection]
			sections[i].Truncated = true
		}
		if total+len(sections[i].Items) > e.cfg.MaxTotalItems {
			allowed := e.cfg.MaxTotalItems - total
			if allowed < 0 {
				allowed = 0
			}
			sections[i].Items = sections[i].Items[:allowed]
			sections[i].Truncated = true
			b.Truncated = true
		}
		total += len(sections[i].Items)
		b.Sections = append(b.Sections, sections[i])
	}

	return b, nil
}

// reinforce implements spec.md §4.8's "Side effect on serve": every node
// included in b gets access_count incremented and its incident edges'
// updated_at touched. Both are writes and therefore bump graph_version,
// which is precisely what invalidates other agents' cached briefings that
// happen to share a node with this one.
func (e *Engine) reinforce(ctx context.Context, b *Briefing) {
	seen := make(map[types.RecordID]bool)
	for _, sec := range b.Sections {
		for _, item := range sec.Items {
			if seen[item.NodeID] {
				continue
			}
			seen[item.NodeID] = true
			e.reinforceNode(ctx, item.NodeID)
		}
	}
}

func (e *Engine) reinforceNode(ctx context.Context, id types.RecordID) {
	node, err := e.storage.GetNode(ctx, id, false)
	if err != nil {
		return
	}
	node.AccessCount++
	if err := e.storage.PutNode(ctx, node); err != nil {
		e.logger.Printf("briefing: reinforce node %s: %v", id, err)
		return
	}

	now := time.Now()
	out, err := e.storage.EdgesFrom(ctx, id)
	if err != nil {
		return
	}
	in, err := e.storage.EdgesTo(ctx, id)
	if err != nil {
		return
	}
	for _, edge := range append(out, in...) {
		edge.UpdatedAt = now
		if err := e.storage.PutEdge(ctx, edge); err != nil {
			e.logger.Printf("briefing: touch edge %s: %v", edge.ID, err)
		}
	}
}
