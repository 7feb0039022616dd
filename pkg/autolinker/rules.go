package autolinker

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/orneryd/knowgraph/pkg/types"
)

// similarityRule implements the Similarity link rule (spec.md §4.7): any
// vector-index candidate above AutoLinkThreshold becomes a related_to edge
// weighted by its cosine score.
func similarityRule(cfg Config, from *types.Node, candidateID types.RecordID, score float32) *ProposedEdge {
	if score < cfg.AutoLinkThreshold {
		return nil
	}
	return &ProposedEdge{
		From: from.ID, To: candidateID, Relation: "related_to", Weight: score,
		Provenance: types.AutoSimilarityProvenance{Score: score},
	}
}

// sameAgentRule: nodes sharing source.agent get a weak related_to edge.
func sameAgentRule(a, b *types.Node) *ProposedEdge {
	if a.Source.Agent == "" || a.Source.Agent != b.Source.Agent {
		return nil
	}
	return &ProposedEdge{
		From: a.ID, To: b.ID, Relation: "related_to", Weight: 0.3,
		Provenance: types.AutoStructuralProvenance{Rule: "same_agent"},
	}
}

// temporalProximityRule: nodes created within cfg.TemporalWindow of each other.
func temporalProximityRule(cfg Config, a, b *types.Node) *ProposedEdge {
	delta := a.CreatedAt.Sub(b.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > cfg.TemporalWindow {
		return nil
	}
	return &ProposedEdge{
		From: a.ID, To: b.ID, Relation: "related_to", Weight: 0.4,
		Provenance: types.AutoStructuralProvenance{Rule: "temporal"},
	}
}

// sharedTagsRule: two or more shared tags, weight scaling with the overlap
// beyond the first two, capped at 0.9.
func sharedTagsRule(a, b *types.Node) *ProposedEdge {
	shared := a.SharedTagCount(b)
	if shared < 2 {
		return nil
	}
	weight := 0.5 + 0.1*float32(shared-2)
	if weight > 0.9 {
		weight = 0.9
	}
	return &ProposedEdge{
		From: a.ID, To: b.ID, Relation: "related_to", Weight: weight,
		Provenance: types.AutoStructuralProvenance{Rule: "tags"},
	}
}

// decisionToEventRule: a decision node leads to an event node from the same
// session, ordered by creation time.
func decisionToEventRule(a, b *types.Node) *ProposedEdge {
	if a.Kind != "decision" || b.Kind != "event" {
		return nil
	}
	if a.Source.Session == "" || a.Source.Session != b.Source.Session {
		return nil
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return nil
	}
	return &ProposedEdge{
		From: a.ID, To: b.ID, Relation: "led_to", Weight: 0.6,
		Provenance: types.AutoStructuralProvenance{Rule: "d2e"},
	}
}

// observationToPatternRule: an observation instantiates a pattern when
// similarity clears 0.7 and their tags overlap at all.
func observationToPatternRule(a, b *types.Node, score float32) *ProposedEdge {
	if a.Kind != "observation" || b.Kind != "pattern" {
		return nil
	}
	if score < 0.7 {
		return nil
	}
	if a.SharedTagCount(b) == 0 {
		return nil
	}
	return &ProposedEdge{
		From: a.ID, To: b.ID, Relation: "instance_of", Weight: 0.7,
		Provenance: types.AutoStructuralProvenance{Rule: "o2p"},
	}
}

// factSupersedesRule: a newer same-kind fact with a near-identical title
// supersedes the older one.
func factSupersedesRule(a, b *types.Node, titleSimilarity float64) *ProposedEdge {
	if a.Kind != b.Kind {
		return nil
	}
	if titleSimilarity < 0.9 {
		return nil
	}

	newer, older := a, b
	if older.CreatedAt.After(newer.CreatedAt) {
		newer, older = older, newer
	}
	if newer.CreatedAt.Equal(older.CreatedAt) {
		return nil
	}

	return &ProposedEdge{
		From: newer.ID, To: older.ID, Relation: "supersedes", Weight: 0.9,
		Provenance: types.AutoStructuralProvenance{Rule: "superseded"},
	}
}

// titleSimilarity is a crude Jaccard-over-tokens similarity used only to
// decide whether two titles are "near-identical" for FactSupersedes; the
// authoritative semantic measure is the embedding cosine score computed by
// the similarity rule, not this helper.
func titleSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// contentFingerprint hashes a node's title+body with xxhash so the dedup
// pass can short-circuit exact-content matches without paying for a
// titleSimilarity token-set computation on every candidate pair.
func contentFingerprint(n *types.Node) uint64 {
	return xxhash.Sum64String(strings.ToLower(n.Title) + "\x00" + strings.ToLower(n.Body))
}
