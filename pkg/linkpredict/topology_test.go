package linkpredict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/types"
)

func newIDs(n int) []types.RecordID {
	ids := make([]types.RecordID, n)
	for i := range ids {
		ids[i] = types.NewRecordID()
	}
	return ids
}

func undirected(g Graph, a, b types.RecordID) {
	if g[a] == nil {
		g[a] = make(NodeSet)
	}
	if g[b] == nil {
		g[b] = make(NodeSet)
	}
	g[a][b] = struct{}{}
	g[b][a] = struct{}{}
}

func TestCommonNeighbors_RanksSharedConnections(t *testing.T) {
	ids := newIDs(5) // you, sarah, alex, jamie, mike
	you, sarah, alex, jamie, mike := ids[0], ids[1], ids[2], ids[3], ids[4]

	g := make(Graph)
	undirected(g, you, alex)
	undirected(g, you, jamie)
	undirected(g, sarah, alex)
	undirected(g, sarah, jamie)
	undirected(g, mike, alex)

	preds := CommonNeighbors(g, you, 10)
	require.NotEmpty(t, preds)
	assert.Equal(t, sarah, preds[0].TargetID)
	assert.Equal(t, 2.0, preds[0].Score)
}

func TestJaccard_NormalizesByUnion(t *testing.T) {
	ids := newIDs(4)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	g := make(Graph)
	undirected(g, a, c)
	undirected(g, a, d)
	undirected(g, b, c)

	preds := Jaccard(g, a, 10)
	require.NotEmpty(t, preds)
	assert.Equal(t, b, preds[0].TargetID)
	assert.InDelta(t, 1.0/2.0, preds[0].Score, 1e-9)
}

func TestPreferentialAttachment_ScoresByDegreeProduct(t *testing.T) {
	ids := newIDs(4)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	g := make(Graph)
	undirected(g, a, b)
	undirected(g, c, d)
	undirected(g, c, a)

	preds := PreferentialAttachment(g, a, 10)
	require.NotEmpty(t, preds)
	for _, p := range preds {
		assert.Greater(t, p.Score, 0.0)
	}
}

func TestTopKPredictions_TruncatesAndOrdersDeterministically(t *testing.T) {
	ids := newIDs(3)
	scores := map[types.RecordID]float64{ids[0]: 1, ids[1]: 5, ids[2]: 5}
	preds := topKPredictions(scores, 2, "test")
	require.Len(t, preds, 2)
	assert.Equal(t, 5.0, preds[0].Score)
	assert.Equal(t, 5.0, preds[1].Score)
}

func TestNodeSet_ContainsAndSize(t *testing.T) {
	ids := newIDs(2)
	ns := NodeSet{ids[0]: struct{}{}}
	assert.True(t, ns.Contains(ids[0]))
	assert.False(t, ns.Contains(ids[1]))
	assert.Equal(t, 1, ns.Size())
}
