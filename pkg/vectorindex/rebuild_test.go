package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/types"
)

type sourceRecord struct {
	id          types.RecordID
	vec         []float32
	kind        string
	sourceAgent string
}

func streamFrom(records []sourceRecord) func(ctx context.Context, visit func(id types.RecordID, vec []float32, kind, sourceAgent string) error) error {
	return func(ctx context.Context, visit func(id types.RecordID, vec []float32, kind, sourceAgent string) error) error {
		for _, r := range records {
			if err := visit(r.id, r.vec, r.kind, r.sourceAgent); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestRebuild_PopulatesFromSource(t *testing.T) {
	idx := New(4, DefaultConfig())
	records := []sourceRecord{
		{id: types.NewRecordID(), vec: unitVec(4, 0), kind: "fact", sourceAgent: "agent-a"},
		{id: types.NewRecordID(), vec: unitVec(4, 1), kind: "event", sourceAgent: "agent-b"},
	}

	require.NoError(t, idx.Rebuild(context.Background(), streamFrom(records)))
	assert.Equal(t, 2, idx.Len())

	results, err := idx.Search(context.Background(), unitVec(4, 0), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, records[0].id, results[0].ID)
}

func TestRebuild_ClearsPriorState(t *testing.T) {
	idx := New(4, DefaultConfig())
	stale := types.NewRecordID()
	require.NoError(t, idx.Insert(stale, unitVec(4, 0), "fact", "agent-a"))

	fresh := []sourceRecord{{id: types.NewRecordID(), vec: unitVec(4, 1), kind: "fact", sourceAgent: "agent-a"}}
	require.NoError(t, idx.Rebuild(context.Background(), streamFrom(fresh)))

	assert.Equal(t, 1, idx.Len())
	results, err := idx.Search(context.Background(), unitVec(4, 0), 2, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, stale, r.ID)
	}
}

func TestRebuild_IsDeterministicGivenSameSet(t *testing.T) {
	records := []sourceRecord{
		{id: types.NewRecordID(), vec: unitVec(4, 0), kind: "fact", sourceAgent: "agent-a"},
		{id: types.NewRecordID(), vec: unitVec(4, 1), kind: "fact", sourceAgent: "agent-a"},
		{id: types.NewRecordID(), vec: unitVec(4, 2), kind: "fact", sourceAgent: "agent-a"},
	}

	idxA := New(4, DefaultConfig())
	require.NoError(t, idxA.Rebuild(context.Background(), streamFrom(records)))
	idxB := New(4, DefaultConfig())
	require.NoError(t, idxB.Rebuild(context.Background(), streamFrom(records)))

	for _, r := range records {
		wantA, err := idxA.Search(context.Background(), r.vec, 1, nil)
		require.NoError(t, err)
		wantB, err := idxB.Search(context.Background(), r.vec, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, wantA[0].ID, wantB[0].ID)
	}
}

func TestRebuild_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := New(4, DefaultConfig())
	records := []sourceRecord{{id: types.NewRecordID(), vec: unitVec(4, 0), kind: "fact", sourceAgent: "agent-a"}}

	err := idx.Rebuild(ctx, streamFrom(records))
	assert.Error(t, err)
}
