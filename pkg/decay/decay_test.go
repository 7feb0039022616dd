package decay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_NoDecayAtZeroDays(t *testing.T) {
	cfg := DefaultConfig()
	w, outcome := Apply(cfg, 0.5, 0, 0)
	assert.InDelta(t, 0.5, w, 1e-6)
	assert.Equal(t, Unchanged, outcome)
}

func TestApply_ImportanceShieldSlowsDecay(t *testing.T) {
	cfg := DefaultConfig()
	lowImportance, _ := Apply(cfg, 0.5, 30, 0)
	highImportance, _ := Apply(cfg, 0.5, 30, 1.0)
	assert.Less(t, lowImportance, highImportance)
}

func TestApply_PruneBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	_, outcome := Apply(cfg, 0.12, 30, 0)
	assert.Equal(t, Pruned, outcome)
}

func TestApply_DeleteBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	_, outcome := Apply(cfg, 0.06, 100, 0)
	assert.Equal(t, Delete, outcome)
}

func TestApply_HighDecayOverManyDays(t *testing.T) {
	cfg := DefaultConfig()
	w, outcome := Apply(cfg, 1.0, 365, 0)
	assert.Less(t, w, float32(0.1))
	assert.Equal(t, Delete, outcome)
}
