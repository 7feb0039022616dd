package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

func newTestService(t *testing.T) (storage.Engine, *Service) {
	t.Helper()
	store, err := storage.NewInMemoryBadgerEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb := embedding.NewLocal(embedding.DefaultDimensions)
	idx := vectorindex.New(emb.Dimensions(), vectorindex.DefaultConfig())
	return store, New(store, idx, emb)
}

func TestIngest_CreatesNewNode(t *testing.T) {
	store, svc := newTestService(t)
	ctx := context.Background()

	n, deduped, err := svc.Ingest(ctx, Event{
		Kind: "fact", Title: "service is up", Body: "observed at 10:00",
		Source: types.Source{Agent: "agent-a", Session: "sess-1"},
	})
	require.NoError(t, err)
	require.False(t, deduped)
	require.NotZero(t, n.ID)
	require.Len(t, n.Embedding, embedding.DefaultDimensions)

	stored, err := store.GetNode(ctx, n.ID, false)
	require.NoError(t, err)
	require.Equal(t, "service is up", stored.Title)
}

func TestIngest_DedupesByIdentityWithinSameSession(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	ev := Event{
		Kind: "fact", Title: "service is up",
		Source: types.Source{Agent: "agent-a", Session: "sess-1"},
	}

	first, deduped, err := svc.Ingest(ctx, ev)
	require.NoError(t, err)
	require.False(t, deduped)

	second, deduped, err := svc.Ingest(ctx, ev)
	require.NoError(t, err)
	require.True(t, deduped)
	require.Equal(t, first.ID, second.ID)
}

func TestIngest_DoesNotDedupeAcrossSessions(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.Ingest(ctx, Event{
		Kind: "fact", Title: "service is up",
		Source: types.Source{Agent: "agent-a", Session: "sess-1"},
	})
	require.NoError(t, err)

	second, deduped, err := svc.Ingest(ctx, Event{
		Kind: "fact", Title: "service is up",
		Source: types.Source{Agent: "agent-a", Session: "sess-2"},
	})
	require.NoError(t, err)
	require.False(t, deduped)
	require.NotEqual(t, first.ID, second.ID)
}

func TestIngest_InsertsIntoVectorIndex(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	n, _, err := svc.Ingest(ctx, Event{
		Kind: "fact", Title: "the sky is blue",
		Source: types.Source{Agent: "agent-a", Session: "sess-1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, svc.index.Len())

	results, err := svc.index.Search(ctx, n.Embedding, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, n.ID, results[0].ID)
}
