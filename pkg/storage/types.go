// Package storage implements the transactional storage engine spec.md
// §4.2 describes: a BadgerDB-backed keyspace giving ACID node/edge tables,
// multimap secondary indexes, a meta table, and an append-only audit log,
// with MVCC reads (a read transaction sees a consistent snapshot of the
// moment it began) and single-writer serialization of commits.
package storage

import (
	"time"

	"github.com/orneryd/knowgraph/pkg/types"
)

// Re-exported so callers only need to import pkg/storage for the common
// error-matching path, per spec.md §7's taxonomy (Validation, not-found,
// transient, fatal/corruption).
var (
	ErrNotFound      = types.ErrNotFound
	ErrAlreadyExists = types.ErrAlreadyExists
	ErrInvalidEdge   = types.ErrInvalidEdge
	ErrClosed        = types.ErrClosed
	ErrValidation    = types.ErrValidation
	ErrSchemaTooNew  = types.ErrSchemaTooNew
	ErrSchemaTooOld  = types.ErrSchemaTooOld
)

// NodeFilter narrows list_nodes/count_nodes. ListNodes takes candidates
// from one secondary index (the first of kind, tag, source agent that the
// filter sets) and confirms every predicate against the primary record.
// Candidate sets of several indexes are not intersected, and a filter that
// sets none of those three fields scans the whole nodes table.
type NodeFilter struct {
	Kinds          []string
	Tags           []string
	SourceAgent    string
	CreatedAfter   time.Time
	CreatedBefore  time.Time
	UpdatedAfter   time.Time
	MinImportance  float32
	Namespaces     []string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Matches reports whether n satisfies every predicate set on f. Empty
// slices/zero values are treated as "no constraint" — this is what makes
// NodeFilter composition commutative and idempotent (spec.md §8).
func (f NodeFilter) Matches(n *types.Node) bool {
	if !f.IncludeDeleted && n.Deleted {
		return false
	}
	if len(f.Kinds) > 0 && !containsString(f.Kinds, n.Kind) {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, t := range f.Tags {
			if n.HasTag(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SourceAgent != "" && n.Source.Agent != f.SourceAgent {
		return false
	}
	if !f.CreatedAfter.IsZero() && !n.CreatedAt.After(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !n.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if !f.UpdatedAfter.IsZero() && !n.UpdatedAt.After(f.UpdatedAfter) {
		return false
	}
	if f.MinImportance > 0 && n.Importance < f.MinImportance {
		return false
	}
	if len(f.Namespaces) > 0 && !containsString(f.Namespaces, n.Namespace) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Stats summarizes the database for operational visibility: per-kind and
// per-relation counts, on-disk size, and the age span of stored nodes.
type Stats struct {
	NodesByKind     map[string]int
	EdgesByRelation map[string]int
	TotalNodes      int
	TotalEdges      int
	LSMSizeBytes    int64
	ValueLogBytes   int64
	OldestNode      time.Time
	NewestNode      time.Time
}

// AuditEventType enumerates the mutation kinds recorded in the audit log.
type AuditEventType string

const (
	AuditNodeCreated      AuditEventType = "node_created"
	AuditNodeUpdated      AuditEventType = "node_updated"
	AuditNodeDeleted      AuditEventType = "node_deleted"
	AuditNodeHardDeleted  AuditEventType = "node_hard_deleted"
	AuditEdgeCreated      AuditEventType = "edge_created"
	AuditEdgeUpdated      AuditEventType = "edge_updated"
	AuditEdgeDeleted      AuditEventType = "edge_deleted"
)

// AuditEntry is one line of the append-only audit log (spec.md §4.2's
// `audit(ts_nanos → encoded AuditEntry)` table). Entries are the
// linearisation of all mutations: within a single writer they are
// strictly increasing by timestamp (§5).
type AuditEntry struct {
	TimestampNanos int64
	Type           AuditEventType
	EntityID       types.RecordID
	Detail         string
}
