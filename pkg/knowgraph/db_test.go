package knowgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/ingest"
	"github.com/orneryd/knowgraph/pkg/types"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	opts := DefaultOptions("")
	opts.InMemory = true
	opts.RunBackgroundLoops = false
	db, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_InMemoryStartsWithEmptyIndex(t *testing.T) {
	db := newTestDB(t)
	require.Equal(t, 0, db.index.Len())
}

func TestIngestAndGetNode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, deduped, err := db.Ingest(ctx, ingest.Event{
		Kind: "fact", Title: "service is up",
		Source: types.Source{Agent: "agent-a", Session: "sess-1"},
	})
	require.NoError(t, err)
	require.False(t, deduped)

	got, err := db.GetNode(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, "service is up", got.Title)
	require.Equal(t, 1, db.index.Len())
}

func TestLinkAndNeighbors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, _, err := db.Ingest(ctx, ingest.Event{Kind: "fact", Title: "a", Source: types.Source{Agent: "agent-a", Session: "s1"}})
	require.NoError(t, err)
	b, _, err := db.Ingest(ctx, ingest.Event{Kind: "fact", Title: "b", Source: types.Source{Agent: "agent-a", Session: "s1"}})
	require.NoError(t, err)

	_, err = db.Link(ctx, a.ID, b.ID, "related_to", 0.9, "tester")
	require.NoError(t, err)

	neighbors, err := db.Neighbors(ctx, a.ID, graph.Outgoing, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	require.Equal(t, b.ID, neighbors[0].Node.ID)
}

func TestForgetRemovesFromIndexAndDefaultQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, _, err := db.Ingest(ctx, ingest.Event{Kind: "fact", Title: "ephemeral", Source: types.Source{Agent: "agent-a", Session: "s1"}})
	require.NoError(t, err)

	require.NoError(t, db.Forget(ctx, n.ID))
	require.Equal(t, 0, db.index.Len())

	_, err = db.GetNode(ctx, n.ID)
	require.Error(t, err)
}

func TestTickRunsWithoutError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, _, err := db.Ingest(ctx, ingest.Event{Kind: "fact", Title: "a", Source: types.Source{Agent: "agent-a", Session: "s1"}})
	require.NoError(t, err)

	_, err = db.Tick(ctx)
	require.NoError(t, err)
}

func TestBriefing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, _, err := db.Ingest(ctx, ingest.Event{
		Kind: "goal", Title: "ship the feature",
		Source: types.Source{Agent: "agent-a", Session: "s1"},
	})
	require.NoError(t, err)

	b, err := db.Briefing(ctx, "agent-a", false)
	require.NoError(t, err)
	require.Equal(t, "agent-a", b.AgentID)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, _, err := db.Ingest(ctx, ingest.Event{Kind: "fact", Title: "a", Source: types.Source{Agent: "agent-a", Session: "s1"}})
	require.NoError(t, err)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalNodes)
}
