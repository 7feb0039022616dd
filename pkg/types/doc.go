// Package types defines the core data model shared by every other package
// in this module: the 128-bit time-sortable RecordID, the Node and Edge
// record shapes, the Provenance tagged union, and the validation rules
// spec.md §3 requires on every write.
//
// Nothing in this package touches storage, embeddings, or the graph — it
// is pure data plus the validation that's cheap to check without a
// transaction. Storage-dependent invariants (endpoint liveness, triple
// uniqueness) live in pkg/storage, which is the only component with enough
// context to enforce them. Embedding dimension is not checked by
// pkg/storage; pkg/vectorindex rejects mismatched vectors on Insert.
package types
