package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
)

func newTestEngine(t *testing.T) (storage.Engine, *Engine) {
	t.Helper()
	store, err := storage.NewInMemoryBadgerEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g, err := New(store)
	require.NoError(t, err)
	return store, g
}

func newTestNodeWithKind(t *testing.T, store storage.Engine, kind string) types.Node {
	t.Helper()
	n := types.Node{
		ID: types.NewRecordID(), Kind: kind, Title: "t", Body: "b",
		Source: types.Source{Agent: "agent-a"}, Importance: 0.5,
	}
	require.NoError(t, store.PutNode(context.Background(), &n))
	return n
}

func newTestEdge(t *testing.T, store storage.Engine, from, to types.RecordID, relation string, weight float32) types.Edge {
	t.Helper()
	e := types.Edge{
		ID: types.NewRecordID(), From: from, To: to, Relation: relation, Weight: weight,
		Provenance: types.ManualProvenance{By: "tester"},
	}
	require.NoError(t, store.PutEdge(context.Background(), &e))
	return e
}
