package autolinker

import (
	"fmt"
	"strings"

	"github.com/orneryd/knowgraph/pkg/types"
)

// negationWords trips the contradiction detector's text heuristic. English
// only; spec.md §9 documents this as a known limitation rather than an
// oversight.
var negationWords = []string{"not", "never", "no longer", "stopped", "removed"}

// detectContradiction implements spec.md §4.7's contradiction detector: it
// fires only when score clears contradictionThreshold AND at least one of
// the three heuristics below also fires.
func detectContradiction(cfg Config, a, b *types.Node, score float32) *ProposedEdge {
	if score < cfg.ContradictionThreshold {
		return nil
	}

	if !hasNegationSignal(a, b) && !hasOpposingMetadata(a, b) && !hasStrictTemporalSupersession(a, b) {
		return nil
	}

	return &ProposedEdge{
		From: a.ID, To: b.ID, Relation: "contradicts", Weight: score,
		Provenance: types.AutoStructuralProvenance{Rule: "contradiction"},
	}
}

// hasNegationSignal reports whether exactly one of a/b's text contains a
// negation word the other lacks — a crude proxy for "one says X, the other
// says not X".
func hasNegationSignal(a, b *types.Node) bool {
	return containsNegation(a.Title+" "+a.Body) != containsNegation(b.Title+" "+b.Body)
}

func containsNegation(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range negationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// hasOpposingMetadata reports whether a and b share a metadata key with
// differing scalar values (e.g. status=active vs status=cancelled).
func hasOpposingMetadata(a, b *types.Node) bool {
	for key, av := range a.Metadata {
		bv, ok := b.Metadata[key]
		if !ok {
			continue
		}
		if fmt.Sprint(av) != fmt.Sprint(bv) {
			return true
		}
	}
	return false
}

// hasStrictTemporalSupersession reports whether a and b are the same kind,
// have near-identical titles, and one is unambiguously newer — the same
// shape FactSupersedes looks for, but surfaced as a contradiction signal
// rather than auto-resolved when it co-occurs with a high similarity score.
func hasStrictTemporalSupersession(a, b *types.Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	if titleSimilarity(a.Title, b.Title) < 0.9 {
		return false
	}
	return !a.CreatedAt.Equal(b.CreatedAt)
}
