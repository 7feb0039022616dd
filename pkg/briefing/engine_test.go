package briefing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/hybrid"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

func newTestFixture(t *testing.T) (storage.Engine, *Engine) {
	t.Helper()
	store, err := storage.NewInMemoryBadgerEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g, err := graph.New(store)
	require.NoError(t, err)

	emb := embedding.NewLocal(embedding.DefaultDimensions)
	idx := vectorindex.New(emb.Dimensions(), vectorindex.DefaultConfig())
	retriever := hybrid.New(store, idx, g, emb)

	cfg := DefaultConfig()
	e := New(store, g, retriever, cfg, nil)
	return store, e
}

func mustPutNode(t *testing.T, store storage.Engine, n *types.Node) {
	t.Helper()
	require.NoError(t, store.PutNode(context.Background(), n))
}

func mustPutEdge(t *testing.T, store storage.Engine, from, to types.RecordID, relation string, weight float32, prov types.Provenance) *types.Edge {
	t.Helper()
	e := &types.Edge{ID: types.NewRecordID(), From: from, To: to, Relation: relation, Weight: weight, Provenance: prov, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.PutEdge(context.Background(), e))
	return e
}

func TestGet_IdentitySectionIncludesAgentAndAppliesToNeighbours(t *testing.T) {
	store, e := newTestFixture(t)
	ctx := context.Background()
	now := time.Now()

	agent := &types.Node{ID: types.NewRecordID(), Kind: "agent", Title: "agent-a", Source: types.Source{Agent: "agent-a"}, CreatedAt: now, UpdatedAt: now}
	pref := &types.Node{ID: types.NewRecordID(), Kind: "preference", Title: "likes terse replies", Source: types.Source{Agent: "agent-a"}, CreatedAt: now, UpdatedAt: now}
	irrelevant := &types.Node{ID: types.NewRecordID(), Kind: "event", Title: "unrelated event", Source: types.Source{Agent: "agent-a"}, CreatedAt: now, UpdatedAt: now}
	mustPutNode(t, store, agent)
	mustPutNode(t, store, pref)
	mustPutNode(t, store, irrelevant)
	mustPutEdge(t, store, pref.ID, agent.ID, "applies_to", 0.8, types.ManualProvenance{By: "tester"})
	mustPutEdge(t, store, irrelevant.ID, agent.ID, "applies_to", 0.8, types.ManualProvenance{By: "tester"})

	b, err := e.Get(ctx, "agent-a", false)
	require.NoError(t, err)

	var identity Section
	for _, s := range b.Sections {
		if s.Name == "Identity" {
			identity = s
		}
	}
	ids := make(map[types.RecordID]bool)
	for _, item := range identity.Items {
		ids[item.NodeID] = true
	}
	require.True(t, ids[agent.ID])
	require.True(t, ids[pref.ID])
	require.False(t, ids[irrelevant.ID], "event-kind applies_to neighbour must be filtered out")
}

func TestGet_RecentEventsSectionFiltersByWindow(t *testing.T) {
	store, e := newTestFixture(t)
	ctx := context.Background()

	recent := &types.Node{ID: types.NewRecordID(), Kind: "event", Title: "just happened", Source: types.Source{Agent: "agent-b"}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	old := &types.Node{ID: types.NewRecordID(), Kind: "event", Title: "ancient history", Source: types.Source{Agent: "agent-b"}, CreatedAt: time.Now().Add(-240 * time.Hour), UpdatedAt: time.Now().Add(-240 * time.Hour)}
	mustPutNode(t, store, recent)
	mustPutNode(t, store, old)

	b, err := e.Get(ctx, "agent-b", false)
	require.NoError(t, err)

	var events Section
	for _, s := range b.Sections {
		if s.Name == "Recent events" {
			events = s
		}
	}
	require.Len(t, events.Items, 1)
	require.Equal(t, recent.ID, events.Items[0].NodeID)
}

func TestGet_CachesUntilGraphVersionChanges(t *testing.T) {
	store, e := newTestFixture(t)
	ctx := context.Background()

	goal := &types.Node{ID: types.NewRecordID(), Kind: "goal", Title: "ship the feature", Source: types.Source{Agent: "agent-c"}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mustPutNode(t, store, goal)

	first, err := e.Get(ctx, "agent-c", false)
	require.NoError(t, err)

	second, err := e.Get(ctx, "agent-c", false)
	require.NoError(t, err)
	require.Equal(t, first.GeneratedAt, second.GeneratedAt, "second call should be served from cache")

	newGoal := &types.Node{ID: types.NewRecordID(), Kind: "goal", Title: "ship the other feature", Source: types.Source{Agent: "agent-c"}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mustPutNode(t, store, newGoal)

	third, err := e.Get(ctx, "agent-c", false)
	require.NoError(t, err)
	require.NotEqual(t, first.GeneratedAt, third.GeneratedAt, "graph_version bump must invalidate the cache entry")
}

func TestGet_ReinforcementIncrementsAccessCount(t *testing.T) {
	store, e := newTestFixture(t)
	ctx := context.Background()

	goal := &types.Node{ID: types.NewRecordID(), Kind: "goal", Title: "ship the feature", Source: types.Source{Agent: "agent-d"}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mustPutNode(t, store, goal)

	_, err := e.Get(ctx, "agent-d", false)
	require.NoError(t, err)

	updated, err := store.GetNode(ctx, goal.ID, false)
	require.NoError(t, err)
	require.Equal(t, uint64(1), updated.AccessCount)
}

func TestGet_UnresolvedSectionIncludesContradictionAndLowConfidenceLink(t *testing.T) {
	store, e := newTestFixture(t)
	ctx := context.Background()
	now := time.Now()

	agent := &types.Node{ID: types.NewRecordID(), Kind: "agent", Title: "agent-e", Source: types.Source{Agent: "agent-e"}, CreatedAt: now, UpdatedAt: now}
	factA := &types.Node{ID: types.NewRecordID(), Kind: "fact", Title: "service is up", Source: types.Source{Agent: "agent-e"}, CreatedAt: now, UpdatedAt: now}
	factB := &types.Node{ID: types.NewRecordID(), Kind: "fact", Title: "service is not up", Source: types.Source{Agent: "agent-e"}, CreatedAt: now, UpdatedAt: now}
	weaklyLinked := &types.Node{ID: types.NewRecordID(), Kind: "fact", Title: "maybe related fact", Source: types.Source{Agent: "agent-e"}, CreatedAt: now, UpdatedAt: now}
	weakPeer := &types.Node{ID: types.NewRecordID(), Kind: "fact", Title: "weak peer", Source: types.Source{Agent: "agent-e"}, CreatedAt: now, UpdatedAt: now}
	mustPutNode(t, store, agent)
	mustPutNode(t, store, factA)
	mustPutNode(t, store, factB)
	mustPutNode(t, store, weaklyLinked)
	mustPutNode(t, store, weakPeer)

	mustPutEdge(t, store, agent.ID, factA.ID, "contradicts", 0.85, types.AutoStructuralProvenance{Rule: "contradiction"})
	mustPutEdge(t, store, weaklyLinked.ID, weakPeer.ID, "related_to", 0.2, types.AutoSimilarityProvenance{Score: 0.2})

	b, err := e.Get(ctx, "agent-e", false)
	require.NoError(t, err)

	var unresolved Section
	for _, s := range b.Sections {
		if s.Name == "Unresolved" {
			unresolved = s
		}
	}
	ids := make(map[types.RecordID]bool)
	for _, item := range unresolved.Items {
		ids[item.NodeID] = true
	}
	require.True(t, ids[factA.ID], "contradicts neighbour should surface")
	require.True(t, ids[weaklyLinked.ID], "low-confidence auto-linked node should surface")
}
