package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdge_Validate_RejectsSelfEdge(t *testing.T) {
	id := NewRecordID()
	e := &Edge{ID: NewRecordID(), From: id, To: id, Relation: "related_to", Provenance: ManualProvenance{By: "kai"}}
	assert.Error(t, e.Validate())
}

func TestEdge_Validate_RejectsHyphenatedRelation(t *testing.T) {
	e := &Edge{
		ID:         NewRecordID(),
		From:       NewRecordID(),
		To:         NewRecordID(),
		Relation:   "related-to",
		Provenance: ManualProvenance{By: "kai"},
	}
	assert.Error(t, e.Validate())
}

func TestEdge_Validate_AcceptsUnderscoredRelation(t *testing.T) {
	e := &Edge{
		ID:         NewRecordID(),
		From:       NewRecordID(),
		To:         NewRecordID(),
		Relation:   "related_to",
		Provenance: ManualProvenance{By: "kai"},
	}
	assert.NoError(t, e.Validate())
}

func TestEdge_ClampWeight(t *testing.T) {
	e := &Edge{Weight: 2.0}
	e.ClampWeight()
	assert.Equal(t, float32(1.0), e.Weight)
}

func TestIsManual(t *testing.T) {
	assert.True(t, IsManual(ManualProvenance{By: "kai"}))
	assert.False(t, IsManual(AutoSimilarityProvenance{Score: 0.8}))
}
