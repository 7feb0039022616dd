package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortestPath_FindsDirectEdge(t *testing.T) {
	store, g := newTestEngine(t)
	ctx := context.Background()

	a := newTestNodeWithKind(t, store, "fact")
	b := newTestNodeWithKind(t, store, "fact")
	newTestEdge(t, store, a.ID, b.ID, "related_to", 0.5)

	path, err := g.ShortestPath(ctx, a.ID, b.ID, Outgoing)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 1, path.Length)
	assert.Equal(t, a.ID, path.Nodes[0])
}

func TestShortestPath_Unreachable(t *testing.T) {
	store, g := newTestEngine(t)
	ctx := context.Background()

	a := newTestNodeWithKind(t, store, "fact")
	b := newTestNodeWithKind(t, store, "fact")

	path, err := g.ShortestPath(ctx, a.ID, b.ID, Outgoing)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestShortestWeightedPath_PrefersStrongerPath(t *testing.T) {
	store, g := newTestEngine(t)
	ctx := context.Background()

	a := newTestNodeWithKind(t, store, "fact")
	mid := newTestNodeWithKind(t, store, "fact")
	b := newTestNodeWithKind(t, store, "fact")
	weak := newTestNodeWithKind(t, store, "fact")

	// strong path a -> mid -> b, weight product 0.9*0.9 = 0.81
	newTestEdge(t, store, a.ID, mid.ID, "related_to", 0.9)
	newTestEdge(t, store, mid.ID, b.ID, "related_to", 0.9)
	// weak direct path a -> weak -> b, weight product 0.2*0.2 = 0.04
	newTestEdge(t, store, a.ID, weak.ID, "related_to", 0.2)
	newTestEdge(t, store, weak.ID, b.ID, "related_to", 0.2)

	path, err := g.ShortestWeightedPath(ctx, a.ID, b.ID, Outgoing)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, mid.ID, path.Nodes[1])
	assert.InDelta(t, 0.81, path.TotalWeight, 1e-6)
}

func TestKShortestPaths_ReturnsDistinctLooplessPaths(t *testing.T) {
	store, g := newTestEngine(t)
	ctx := context.Background()

	a := newTestNodeWithKind(t, store, "fact")
	b := newTestNodeWithKind(t, store, "fact")
	c := newTestNodeWithKind(t, store, "fact")
	d := newTestNodeWithKind(t, store, "fact")

	newTestEdge(t, store, a.ID, b.ID, "related_to", 0.9)
	newTestEdge(t, store, b.ID, d.ID, "related_to", 0.9)
	newTestEdge(t, store, a.ID, c.ID, "related_to", 0.5)
	newTestEdge(t, store, c.ID, d.ID, "related_to", 0.5)

	paths, err := g.KShortestPaths(ctx, a.ID, d.ID, Outgoing, 2)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0].Nodes, paths[1].Nodes)
	assert.GreaterOrEqual(t, paths[0].TotalWeight, paths[1].TotalWeight)
}
