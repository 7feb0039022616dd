package autolinker

import "github.com/orneryd/knowgraph/pkg/types"

// ProposedEdge is what a link rule emits; nil means the rule didn't fire.
type ProposedEdge struct {
	From       types.RecordID
	To         types.RecordID
	Relation   string
	Weight     float32
	Provenance types.Provenance
}

func (p ProposedEdge) key() proposalKey {
	return proposalKey{From: p.From, To: p.To, Relation: p.Relation}
}

// proposalKey is the de-dup-at-write key (spec.md §4.7): the rule-map
// collapses duplicate proposals for the same (from, to, relation) within a
// single cycle, keeping the higher-weight proposal.
type proposalKey struct {
	From     types.RecordID
	To       types.RecordID
	Relation string
}

// Metrics summarizes one completed Tick (spec.md §4.7 "Metrics per cycle").
type Metrics struct {
	CyclesRun           int
	NodesProcessed      int
	EdgesCreated        int
	EdgesPruned         int
	EdgesDeleted        int
	DuplicatesFound     int
	ContradictionsFound int
	FlaggedForReview    int
	WallClock           int64 // nanoseconds
	Cursor              int64 // unix nanos watermark after this cycle
	BacklogSize         int
}
