package autolinker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/decay"
	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

func newTestEngine(t *testing.T, cfg Config) (storage.Engine, *vectorindex.Index, *Engine) {
	t.Helper()
	store, err := storage.NewInMemoryBadgerEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb := embedding.NewLocal(embedding.DefaultDimensions)
	idx := vectorindex.New(emb.Dimensions(), vectorindex.DefaultConfig())

	e := New(store, idx, emb, cfg, decay.DefaultConfig(), nil)
	return store, idx, e
}

func putPlainNode(t *testing.T, store storage.Engine, kind, title, body, agent string) types.Node {
	t.Helper()
	now := time.Now()
	n := types.Node{
		ID: types.NewRecordID(), Kind: kind, Title: title, Body: body,
		Source: types.Source{Agent: agent}, Importance: 0.2,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.PutNode(context.Background(), &n))
	return n
}

func TestTick_CreatesSimilarityEdgeAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoLinkThreshold = 0.0 // any cosine score qualifies, to keep the fixture simple
	store, _, e := newTestEngine(t, cfg)
	ctx := context.Background()

	a := putPlainNode(t, store, "fact", "dispatch service routing logic", "routes jobs between workers", "agent-a")
	b := putPlainNode(t, store, "fact", "dispatch service routing logic copy", "routes jobs between workers too", "agent-b")

	metrics, err := e.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, metrics.NodesProcessed)

	edge, err := store.EdgeBetween(ctx, a.ID, b.ID, "related_to")
	if err != nil || edge == nil {
		edge, err = store.EdgeBetween(ctx, b.ID, a.ID, "related_to")
	}
	require.NoError(t, err)
	require.NotNil(t, edge)
}

func TestTick_SameAgentRuleFires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoLinkThreshold = 2.0 // suppress similarity rule so only structural rules fire
	store, _, e := newTestEngine(t, cfg)
	ctx := context.Background()

	a := putPlainNode(t, store, "fact", "alpha content unrelated entirely", "body one", "shared-agent")
	b := putPlainNode(t, store, "fact", "beta content totally different subject", "body two", "shared-agent")

	_, err := e.Tick(ctx)
	require.NoError(t, err)

	edge, _ := store.EdgeBetween(ctx, a.ID, b.ID, "related_to")
	if edge == nil {
		edge, _ = store.EdgeBetween(ctx, b.ID, a.ID, "related_to")
	}
	require.NotNil(t, edge)
}

func TestTick_CursorAdvancesAndIsDurable(t *testing.T) {
	cfg := DefaultConfig()
	store, _, e := newTestEngine(t, cfg)
	ctx := context.Background()

	putPlainNode(t, store, "fact", "first node content", "body", "agent-a")

	metrics, err := e.Tick(ctx)
	require.NoError(t, err)
	require.NotZero(t, metrics.Cursor)

	raw, found, err := store.GetMeta(ctx, cursorMetaKey)
	require.NoError(t, err)
	require.True(t, found)
	require.NotEmpty(t, raw)
}

func TestTick_SecondCycleOnlyProcessesNewNodes(t *testing.T) {
	cfg := DefaultConfig()
	store, _, e := newTestEngine(t, cfg)
	ctx := context.Background()

	putPlainNode(t, store, "fact", "first node content here", "body", "agent-a")
	_, err := e.Tick(ctx)
	require.NoError(t, err)

	metrics, err := e.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, metrics.NodesProcessed)

	putPlainNode(t, store, "fact", "second node content here", "body", "agent-a")
	metrics, err = e.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, metrics.NodesProcessed)
}

func TestRunDecay_PrunesWeakEdges(t *testing.T) {
	cfg := DefaultConfig()
	store, _, e := newTestEngine(t, cfg)
	ctx := context.Background()

	a := putPlainNode(t, store, "fact", "node a", "body", "agent-a")
	b := putPlainNode(t, store, "fact", "node b", "body", "agent-b")

	edge := types.Edge{
		ID: types.NewRecordID(), From: a.ID, To: b.ID, Relation: "related_to", Weight: 0.12,
		Provenance: types.AutoStructuralProvenance{Rule: "tags"},
		UpdatedAt:  time.Now().Add(-30 * 24 * time.Hour),
	}
	require.NoError(t, store.PutEdge(ctx, &edge))

	metrics := Metrics{}
	require.NoError(t, e.runDecay(ctx, &metrics))
	require.Equal(t, 1, metrics.EdgesPruned)

	updated, err := store.GetEdge(ctx, edge.ID)
	require.NoError(t, err)
	require.Less(t, updated.Weight, float32(0.12))
}

func TestRunDecay_ExemptsManualEdges(t *testing.T) {
	cfg := DefaultConfig()
	store, _, e := newTestEngine(t, cfg)
	ctx := context.Background()

	a := putPlainNode(t, store, "fact", "node a", "body", "agent-a")
	b := putPlainNode(t, store, "fact", "node b", "body", "agent-b")

	edge := types.Edge{
		ID: types.NewRecordID(), From: a.ID, To: b.ID, Relation: "related_to", Weight: 0.5,
		Provenance: types.ManualProvenance{By: "tester"},
		UpdatedAt:  time.Now().Add(-365 * 24 * time.Hour),
	}
	require.NoError(t, store.PutEdge(ctx, &edge))

	metrics := Metrics{}
	require.NoError(t, e.runDecay(ctx, &metrics))

	updated, err := store.GetEdge(ctx, edge.ID)
	require.NoError(t, err)
	require.Equal(t, float32(0.5), updated.Weight)
}

func TestRunDedup_MergesNearDuplicateWithNoDistinctEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DedupThreshold = 0.0
	store, idx, e := newTestEngine(t, cfg)
	ctx := context.Background()
	emb := embedding.NewLocal(embedding.DefaultDimensions)

	a := types.Node{ID: types.NewRecordID(), Kind: "fact", Title: "same duplicate content title", Body: "dup body", Source: types.Source{Agent: "agent-a"}, CreatedAt: time.Now().Add(-time.Hour)}
	b := types.Node{ID: types.NewRecordID(), Kind: "fact", Title: "different enough title altogether", Body: "dup body variant", Source: types.Source{Agent: "agent-a"}, CreatedAt: time.Now()}

	for _, n := range []*types.Node{&a, &b} {
		vec, err := emb.Embed(ctx, n.EmbeddingInput())
		require.NoError(t, err)
		n.Embedding = vec
		require.NoError(t, store.PutNode(ctx, n))
		require.NoError(t, idx.Insert(n.ID, vec, n.Kind, n.Source.Agent))
	}

	metrics := Metrics{}
	require.NoError(t, e.runDedup(ctx, &metrics))
	require.Equal(t, 1, metrics.DuplicatesFound)

	retrieved, err := store.GetNode(ctx, b.ID, true)
	require.NoError(t, err)
	keptRetrieved, err := store.GetNode(ctx, a.ID, true)
	require.NoError(t, err)
	require.True(t, retrieved.Deleted != keptRetrieved.Deleted)
}
