package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTopologyHints_ScoresSharedNeighbors(t *testing.T) {
	store, g := newTestEngine(t)
	ctx := context.Background()

	you := newTestNodeWithKind(t, store, "fact")
	sarah := newTestNodeWithKind(t, store, "fact")
	alex := newTestNodeWithKind(t, store, "fact")
	jamie := newTestNodeWithKind(t, store, "fact")

	newTestEdge(t, store, you.ID, alex.ID, "related_to", 0.5)
	newTestEdge(t, store, you.ID, jamie.ID, "related_to", 0.5)
	newTestEdge(t, store, sarah.ID, alex.ID, "related_to", 0.5)
	newTestEdge(t, store, sarah.ID, jamie.ID, "related_to", 0.5)

	hints, err := g.BuildTopologyHints(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, hints.CommonNeighborCount(you.ID, sarah.ID))
	assert.Greater(t, hints.JaccardScore(you.ID, sarah.ID), 0.0)
}
