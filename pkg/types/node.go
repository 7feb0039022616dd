package types

import "time"

// Source identifies who/what produced a Node: the originating agent is
// required, session and channel are optional grouping hints used by the
// dedup-by-identity check on ingest and by several auto-linker rules
// (SameAgent, DecisionToEvent).
type Source struct {
	Agent   string
	Session string
	Channel string
}

// Node is a typed unit of knowledge. Fields mirror spec.md §3 exactly;
// Node is immutable by convention — callers replace it wholesale via
// storage.PutNode rather than mutating fields of a value returned by a
// prior read.
type Node struct {
	ID          RecordID
	Kind        string
	Title       string
	Body        string
	Metadata    map[string]any
	Tags        []string
	Source      Source
	Importance  float32
	AccessCount uint64
	Embedding   []float32
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Deleted     bool
	Namespace   string
}

// Validate checks every field-level invariant from spec.md §3 except the
// embedding-dimension check, which requires the embedding service's
// advertised dimension. The storage engine stores embeddings of any
// length; a length mismatch is rejected only by vectorindex.Index.Insert
// (ErrDimensionMismatch).
func (n *Node) Validate() error {
	if n.ID.IsZero() {
		return newValidationError("id", "must not be zero")
	}
	if err := ValidateKind(n.Kind); err != nil {
		return err
	}
	if err := ValidateTitle(n.Title); err != nil {
		return err
	}
	if err := ValidateTags(n.Tags); err != nil {
		return err
	}
	if n.Source.Agent == "" {
		return newValidationError("source.agent", "must not be empty")
	}
	return nil
}

// ClampImportance clamps Importance into [0.0, 1.0] as required on every
// write (invariant 4).
func (n *Node) ClampImportance() {
	n.Importance = Clamp01(n.Importance)
}

// EmbeddingInput canonicalises the text handed to the embedding service,
// per spec.md §4.3: "{kind}: {title}\n{body}\ntags: {t1, t2, …}".
func (n *Node) EmbeddingInput() string {
	s := n.Kind + ": " + n.Title + "\n" + n.Body + "\ntags: "
	for i, t := range n.Tags {
		if i > 0 {
			s += ", "
		}
		s += t
	}
	return s
}

// HasTag reports whether tag is present in n.Tags.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SharedTagCount returns the number of tags n and other have in common,
// used by the auto-linker's SharedTags rule.
func (n *Node) SharedTagCount(other *Node) int {
	set := make(map[string]struct{}, len(n.Tags))
	for _, t := range n.Tags {
		set[t] = struct{}{}
	}
	count := 0
	for _, t := range other.Tags {
		if _, ok := set[t]; ok {
			count++
		}
	}
	return count
}
