// Package autolinker implements the background reconciliation loop
// (spec.md §4.7): it discovers relationships between nodes via embedding
// similarity and structural rules, flags contradictions, decays stale
// edges, and merges near-duplicate nodes — all without a human in the
// loop, cooperating with the storage engine's single-writer discipline.
package autolinker

import (
	"context"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/orneryd/knowgraph/pkg/decay"
	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

const cursorMetaKey = "autolinker_cursor"

// Engine runs the reconciliation loop over a storage engine and vector
// index, both owned by the caller (typically the top-level façade).
type Engine struct {
	storage  storage.Engine
	index    *vectorindex.Index
	embedder embedding.Embedder
	decayCfg decay.Config
	cfg      Config
	logger   *log.Logger

	cycle int
}

// New builds an Engine. cfg may be the zero value, in which case
// DefaultConfig applies.
func New(store storage.Engine, index *vectorindex.Index, embedder embedding.Embedder, cfg Config, decayCfg decay.Config, logger *log.Logger) *Engine {
	if cfg.Interval == 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{storage: store, index: index, embedder: embedder, decayCfg: decayCfg, cfg: cfg, logger: logger}
}

// Run executes Tick on cfg.Interval until ctx is cancelled. If
// cfg.RunOnStartup is set, an initial Tick runs immediately rather than
// waiting for the first tick of the ticker.
func (e *Engine) Run(ctx context.Context) {
	if e.cfg.RunOnStartup {
		if _, err := e.Tick(ctx); err != nil {
			e.logger.Printf("autolinker: startup cycle: %v", err)
		}
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Tick(ctx); err != nil {
				e.logger.Printf("autolinker: cycle: %v", err)
			}
		}
	}
}

// Tick runs exactly one reconciliation cycle: load the durable cursor,
// process up to MaxNodesPerCycle new-or-updated nodes, propose and commit
// edges, run decay/dedup on their schedule, persist the cursor, and return
// the cycle's metrics.
func (e *Engine) Tick(ctx context.Context) (Metrics, error) {
	start := time.Now()
	e.cycle++
	metrics := Metrics{CyclesRun: 1}

	since, err := e.loadCursor(ctx)
	if err != nil {
		return metrics, err
	}

	nodes, err := e.nodesSince(ctx, since)
	if err != nil {
		return metrics, err
	}
	metrics.BacklogSize = len(nodes)
	if len(nodes) > e.cfg.MaxNodesPerCycle {
		nodes = nodes[:e.cfg.MaxNodesPerCycle]
	}

	proposals := make(map[proposalKey]ProposedEdge)
	var newestSeen time.Time

	for _, node := range nodes {
		if ctx.Err() != nil {
			return metrics, ctx.Err()
		}

		if err := e.ensureEmbedding(ctx, node); err != nil {
			e.logger.Printf("autolinker: ensure_embedding %s: %v", node.ID, err)
			continue
		}
		metrics.NodesProcessed++
		if node.UpdatedAt.After(newestSeen) {
			newestSeen = node.UpdatedAt
		}
		if node.CreatedAt.After(newestSeen) {
			newestSeen = node.CreatedAt
		}

		candidates, err := e.index.Search(ctx, node.Embedding, e.cfg.AutoLinkK, &vectorindex.Filter{ExcludeIDs: []types.RecordID{node.ID}})
		if err != nil {
			e.logger.Printf("autolinker: search %s: %v", node.ID, err)
			continue
		}

		nodeProposals := e.proposeForNode(ctx, node, candidates, &metrics)
		if len(nodeProposals) == 0 {
			continue
		}

		for _, p := range nodeProposals {
			key := p.key()
			if existing, ok := proposals[key]; !ok || p.Weight > existing.Weight {
				proposals[key] = p
			}
		}
	}

	created, err := e.commitProposals(ctx, proposals, &metrics)
	if err != nil {
		return metrics, err
	}
	metrics.EdgesCreated = created

	if e.cfg.DecayEveryN > 0 && e.cycle%e.cfg.DecayEveryN == 0 {
		if err := e.runDecay(ctx, &metrics); err != nil {
			e.logger.Printf("autolinker: decay: %v", err)
		}
	}

	if e.cfg.DedupEveryN > 0 && e.cycle%e.cfg.DedupEveryN == 0 {
		if err := e.runDedup(ctx, &metrics); err != nil {
			e.logger.Printf("autolinker: dedup: %v", err)
		}
	}

	if !newestSeen.IsZero() {
		if err := e.saveCursor(ctx, newestSeen); err != nil {
			return metrics, err
		}
		metrics.Cursor = newestSeen.UnixNano()
	}

	metrics.WallClock = time.Since(start).Nanoseconds()
	return metrics, nil
}

// proposeForNode runs every link rule and the contradiction detector for
// node against its candidate set, applying the per-node explosion guards.
func (e *Engine) proposeForNode(ctx context.Context, node *types.Node, candidates []vectorindex.SearchResult, metrics *Metrics) []ProposedEdge {
	aboveThreshold := 0
	var proposed []ProposedEdge

	for _, c := range candidates {
		other, err := e.storage.GetNode(ctx, c.ID, false)
		if err != nil {
			continue
		}

		score := float32(c.Score)
		if score >= e.cfg.AutoLinkThreshold {
			aboveThreshold++
		}

		if p := similarityRule(e.cfg, node, other.ID, score); p != nil {
			proposed = append(proposed, *p)
		}
		if p := sameAgentRule(node, other); p != nil {
			proposed = append(proposed, *p)
		}
		if p := temporalProximityRule(e.cfg, node, other); p != nil {
			proposed = append(proposed, *p)
		}
		if p := sharedTagsRule(node, other); p != nil {
			proposed = append(proposed, *p)
		}
		if p := decisionToEventRule(node, other); p != nil {
			proposed = append(proposed, *p)
		}
		if p := decisionToEventRule(other, node); p != nil {
			proposed = append(proposed, *p)
		}
		if p := observationToPatternRule(node, other, score); p != nil {
			proposed = append(proposed, *p)
		}
		if p := observationToPatternRule(other, node, score); p != nil {
			proposed = append(proposed, *p)
		}
		if p := factSupersedesRule(node, other, titleSimilarity(node.Title, other.Title)); p != nil {
			proposed = append(proposed, *p)
		}
		if p := detectContradiction(e.cfg, node, other, score); p != nil {
			proposed = append(proposed, *p)
			metrics.ContradictionsFound++
		}
	}

	if aboveThreshold > e.cfg.GenericContentCandidates {
		e.logger.Printf("autolinker: node %s has %d candidates above threshold, generic content suspected, skipping", node.ID, aboveThreshold)
		metrics.FlaggedForReview++
		return nil
	}

	if len(proposed) > e.cfg.MaxEdgesPerNode {
		sort.Slice(proposed, func(i, j int) bool { return proposed[i].Weight > proposed[j].Weight })
		proposed = proposed[:e.cfg.MaxEdgesPerNode]
	}

	return proposed
}

// commitProposals writes every proposal in proposals, upserting by the
// max-weight rule when a live edge already exists for that triple, up to
// MaxEdgesPerCycle.
func (e *Engine) commitProposals(ctx context.Context, proposals map[proposalKey]ProposedEdge, metrics *Metrics) (int, error) {
	ordered := make([]ProposedEdge, 0, len(proposals))
	for _, p := range proposals {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].From != ordered[j].From {
			return ordered[i].From.Less(ordered[j].From)
		}
		return ordered[i].To.Less(ordered[j].To)
	})

	created := 0
	for _, p := range ordered {
		if created >= e.cfg.MaxEdgesPerCycle {
			break
		}

		existing, err := e.storage.EdgeBetween(ctx, p.From, p.To, p.Relation)
		if err == nil && existing != nil {
			if p.Weight > existing.Weight {
				existing.Weight = p.Weight
				existing.UpdatedAt = time.Now()
				if err := e.storage.PutEdge(ctx, existing); err != nil {
					return created, err
				}
			}
			continue
		}

		edge := &types.Edge{
			ID: types.NewRecordID(), From: p.From, To: p.To, Relation: p.Relation,
			Weight: p.Weight, Provenance: p.Provenance,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if err := e.storage.PutEdge(ctx, edge); err != nil {
			e.logger.Printf("autolinker: put edge %s->%s: %v", p.From, p.To, err)
			continue
		}
		created++
	}

	return created, nil
}

// ensureEmbedding computes and persists node's embedding if it is missing,
// and inserts it into the vector index either way (Insert replaces any
// existing entry for the same id, so re-inserting an already-indexed node
// keeps the index in sync with storage-side edits made between cycles).
func (e *Engine) ensureEmbedding(ctx context.Context, node *types.Node) error {
	if len(node.Embedding) == 0 {
		vec, err := e.embedder.Embed(ctx, node.EmbeddingInput())
		if err != nil {
			return err
		}
		node.Embedding = vec
		if err := e.storage.PutNode(ctx, node); err != nil {
			return err
		}
	}
	return e.index.Insert(node.ID, node.Embedding, node.Kind, node.Source.Agent)
}

// nodesSince returns every node created or updated after since, ordered
// oldest-first, deduplicated (a node can match both ListNodes calls).
func (e *Engine) nodesSince(ctx context.Context, since time.Time) ([]*types.Node, error) {
	byID := make(map[types.RecordID]*types.Node)

	createdAfter, err := e.storage.ListNodes(ctx, storage.NodeFilter{CreatedAfter: since})
	if err != nil {
		return nil, err
	}
	for _, n := range createdAfter {
		byID[n.ID] = n
	}

	updatedAfter, err := e.storage.ListNodes(ctx, storage.NodeFilter{UpdatedAfter: since})
	if err != nil {
		return nil, err
	}
	for _, n := range updatedAfter {
		byID[n.ID] = n
	}

	out := make([]*types.Node, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if out[i].UpdatedAt.After(ti) {
			ti = out[i].UpdatedAt
		}
		if out[j].UpdatedAt.After(tj) {
			tj = out[j].UpdatedAt
		}
		return ti.Before(tj)
	})
	return out, nil
}

func (e *Engine) loadCursor(ctx context.Context) (time.Time, error) {
	raw, found, err := e.storage.GetMeta(ctx, cursorMetaKey)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, nil
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos), nil
}

func (e *Engine) saveCursor(ctx context.Context, t time.Time) error {
	return e.storage.PutMeta(ctx, cursorMetaKey, []byte(strconv.FormatInt(t.UnixNano(), 10)))
}
