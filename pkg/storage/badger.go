package storage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/knowgraph/pkg/codec"
	"github.com/orneryd/knowgraph/pkg/types"
)

// Options configures a BadgerEngine. DataDir is ignored when InMemory is
// true. Logger defaults to the standard library logger when nil.
type Options struct {
	DataDir    string
	InMemory   bool
	SyncWrites bool
	Logger     *log.Logger
	LowMemory  bool
}

// Engine is the storage-engine contract the rest of the module depends
// on. BadgerEngine is the only implementation; the interface exists so
// tests and the façade can be written against a narrow contract.
type Engine interface {
	PutNode(ctx context.Context, node *types.Node) error
	GetNode(ctx context.Context, id types.RecordID, includeDeleted bool) (*types.Node, error)
	DeleteNode(ctx context.Context, id types.RecordID) error
	HardDeleteNode(ctx context.Context, id types.RecordID) error
	ListNodes(ctx context.Context, filter NodeFilter) ([]*types.Node, error)
	CountNodes(ctx context.Context, filter NodeFilter) (int, error)

	PutEdge(ctx context.Context, edge *types.Edge) error
	GetEdge(ctx context.Context, id types.RecordID) (*types.Edge, error)
	DeleteEdge(ctx context.Context, id types.RecordID) error
	EdgesFrom(ctx context.Context, nodeID types.RecordID) ([]*types.Edge, error)
	EdgesTo(ctx context.Context, nodeID types.RecordID) ([]*types.Edge, error)
	EdgesBetween(ctx context.Context, a, b types.RecordID) ([]*types.Edge, error)
	EdgeBetween(ctx context.Context, a, b types.RecordID, relation string) (*types.Edge, error)

	PutNodesBatch(ctx context.Context, nodes []*types.Node) error
	PutEdgesBatch(ctx context.Context, edges []*types.Edge) error

	Stats(ctx context.Context) (Stats, error)
	Snapshot(path string) error
	RunGC() error
	Size() (lsm, vlog int64)
	GraphVersion() uint64
	Close() error

	GetMeta(ctx context.Context, key string) ([]byte, bool, error)
	PutMeta(ctx context.Context, key string, value []byte) error

	AppendAudit(entry AuditEntry) error
	StreamAudit(ctx context.Context, fn func(AuditEntry) error) error
	StreamNodes(ctx context.Context, fn func(*types.Node) error) error
	StreamEdges(ctx context.Context, fn func(*types.Edge) error) error
}

// BadgerEngine is the production Engine implementation: one BadgerDB
// instance holding every logical table behind the key-prefix scheme in
// keys.go.
type BadgerEngine struct {
	db           *badger.DB
	logger       *log.Logger
	mu           sync.RWMutex
	closed       bool
	graphVersion uint64
	auditSeq     uint32
}

// NewBadgerEngine opens (or creates) a database at opts.DataDir, or an
// in-memory instance when opts.InMemory is set.
func NewBadgerEngine(opts Options) (*BadgerEngine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	badgerOpts = badgerOpts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024)

	if opts.LowMemory {
		badgerOpts = badgerOpts.WithBlockCacheSize(8 << 20).WithIndexCacheSize(4 << 20)
	} else {
		badgerOpts = badgerOpts.WithBlockCacheSize(32 << 20).WithIndexCacheSize(16 << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}

	if err := checkAndStampSchemaVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	e := &BadgerEngine{db: db, logger: logger}
	if err := e.loadGraphVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// NewInMemoryBadgerEngine is a convenience constructor for tests and the
// façade's InMemory option.
func NewInMemoryBadgerEngine() (*BadgerEngine, error) {
	return NewBadgerEngine(Options{InMemory: true})
}

const metaGraphVersionKey = "graph_version"

func (e *BadgerEngine) loadGraphVersion() error {
	return e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(metaGraphVersionKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				atomic.StoreUint64(&e.graphVersion, bytesToUint64(val))
			}
			return nil
		})
	})
}

// GraphVersion returns the monotonic counter bumped on every committed
// write that affects nodes or edges (spec.md §4.5, §5).
func (e *BadgerEngine) GraphVersion() uint64 {
	return atomic.LoadUint64(&e.graphVersion)
}

func (e *BadgerEngine) bumpGraphVersion(txn *badger.Txn) (uint64, error) {
	v := atomic.AddUint64(&e.graphVersion, 1)
	if err := txn.Set(metaKey(metaGraphVersionKey), uint64ToBytes(v)); err != nil {
		return 0, err
	}
	return v, nil
}

func (e *BadgerEngine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Close flushes and closes the underlying database. Subsequent calls are
// no-ops.
func (e *BadgerEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// Sync forces a value-log sync, primarily useful in tests that assert
// durability without a full close.
func (e *BadgerEngine) Sync() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Sync()
}

// RunGC triggers BadgerDB's value-log garbage collection, reclaiming
// space from overwritten/deleted keys. Safe to call periodically; when
// there's nothing to reclaim, badger's ErrNoRewrite is mapped to nil.
func (e *BadgerEngine) RunGC() error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	err := e.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

// Size returns the approximate on-disk LSM-tree and value-log sizes in
// bytes, satisfying spec.md §4.2's stats() "DB size" field.
func (e *BadgerEngine) Size() (lsm, vlog int64) {
	return e.db.Size()
}

// --- node operations ---

// PutNode validates and upserts a node: inserts if absent, updates the
// record and any secondary indexes whose indexed field changed otherwise.
// Emits a NodeCreated or NodeUpdated audit entry in the same transaction.
func (e *BadgerEngine) PutNode(ctx context.Context, node *types.Node) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := node.Validate(); err != nil {
		return err
	}
	node.ClampImportance()

	return e.db.Update(func(txn *badger.Txn) error {
		existing, err := getNodeTxn(txn, node.ID)
		if err != nil && err != ErrNotFound {
			return err
		}

		if existing != nil {
			if existing.Kind != node.Kind {
				if err := txn.Delete(nodesByKindKey(existing.Kind, node.ID)); err != nil {
					return err
				}
			}
			for _, t := range existing.Tags {
				if !node.HasTag(t) {
					if err := txn.Delete(nodesByTagKey(t, node.ID)); err != nil {
						return err
					}
				}
			}
			if existing.Source.Agent != node.Source.Agent {
				if err := txn.Delete(nodesBySourceKey(existing.Source.Agent, node.ID)); err != nil {
					return err
				}
			}
		}

		data, err := codec.EncodeNode(node)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(node.ID), data); err != nil {
			return err
		}
		if err := txn.Set(nodesByKindKey(node.Kind, node.ID), []byte{1}); err != nil {
			return err
		}
		for _, t := range node.Tags {
			if err := txn.Set(nodesByTagKey(t, node.ID), []byte{1}); err != nil {
				return err
			}
		}
		if err := txn.Set(nodesBySourceKey(node.Source.Agent, node.ID), []byte{1}); err != nil {
			return err
		}

		if _, err := e.bumpGraphVersion(txn); err != nil {
			return err
		}

		eventType := AuditNodeCreated
		if existing != nil {
			eventType = AuditNodeUpdated
		}
		return appendAuditTxn(txn, &e.auditSeq, eventType, node.ID, node.Kind)
	})
}

func getNodeTxn(txn *badger.Txn, id types.RecordID) (*types.Node, error) {
	item, err := txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *types.Node
	err = item.Value(func(val []byte) error {
		n, derr := codec.DecodeNode(val)
		if derr != nil {
			return derr
		}
		node = n
		return nil
	})
	return node, err
}

// GetNode returns the node for id, or ErrNotFound. Tombstoned nodes are
// hidden unless includeDeleted is set.
func (e *BadgerEngine) GetNode(ctx context.Context, id types.RecordID, includeDeleted bool) (*types.Node, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var node *types.Node
	err := e.db.View(func(txn *badger.Txn) error {
		n, err := getNodeTxn(txn, id)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if node.Deleted && !includeDeleted {
		return nil, ErrNotFound
	}
	return node, nil
}

// DeleteNode soft-deletes: sets Deleted=true, keeps secondary indexes
// intact (queries filter on Deleted instead), and emits a NodeDeleted
// audit entry.
func (e *BadgerEngine) DeleteNode(ctx context.Context, id types.RecordID) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		node, err := getNodeTxn(txn, id)
		if err != nil {
			return err
		}
		node.Deleted = true
		node.UpdatedAt = time.Now().UTC()
		data, err := codec.EncodeNode(node)
		if err != nil {
			return err
		}
		if err := txn.Set(nodeKey(id), data); err != nil {
			return err
		}
		if _, err := e.bumpGraphVersion(txn); err != nil {
			return err
		}
		return appendAuditTxn(txn, &e.auditSeq, AuditNodeDeleted, id, node.Kind)
	})
}

// HardDeleteNode removes a node, every incident edge (each cascade
// emitting its own audit entry), and all index entries. The vector index
// is not touched here; the façade's Forget removes the vector-index entry
// when it soft-deletes the node.
func (e *BadgerEngine) HardDeleteNode(ctx context.Context, id types.RecordID) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		node, err := getNodeTxn(txn, id)
		if err != nil {
			return err
		}

		if err := deleteIncidentEdgesTxn(txn, &e.auditSeq, id); err != nil {
			return err
		}

		if err := txn.Delete(nodeKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(nodesByKindKey(node.Kind, id)); err != nil {
			return err
		}
		for _, t := range node.Tags {
			if err := txn.Delete(nodesByTagKey(t, id)); err != nil {
				return err
			}
		}
		if err := txn.Delete(nodesBySourceKey(node.Source.Agent, id)); err != nil {
			return err
		}

		if _, err := e.bumpGraphVersion(txn); err != nil {
			return err
		}
		return appendAuditTxn(txn, &e.auditSeq, AuditNodeHardDeleted, id, node.Kind)
	})
}

func deleteIncidentEdgesTxn(txn *badger.Txn, auditSeq *uint32, nodeID types.RecordID) error {
	var edgeIDs []types.RecordID
	for _, prefix := range [][]byte{edgesFromPrefix(nodeID), edgesToPrefix(nodeID)} {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			edgeIDs = append(edgeIDs, extractIDFromIndexKey(key))
		}
		it.Close()
	}
	for _, eid := range edgeIDs {
		edge, err := getEdgeTxn(txn, eid)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if err := deleteEdgeTxn(txn, auditSeq, edge); err != nil {
			return err
		}
	}
	return nil
}

// ListNodes returns nodes matching filter. When a narrowing index applies
// (kind, then tag, then source agent; the first one set is used) the scan
// starts from that secondary index; otherwise it scans the primary table. Either way every
// candidate is re-confirmed against the full filter before inclusion.
func (e *BadgerEngine) ListNodes(ctx context.Context, filter NodeFilter) ([]*types.Node, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var out []*types.Node
	err := e.db.View(func(txn *badger.Txn) error {
		candidateIDs, narrowed := narrowCandidates(txn, filter)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		visit := func(id types.RecordID) error {
			node, err := getNodeTxn(txn, id)
			if err == ErrNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			if filter.Matches(node) {
				out = append(out, node)
			}
			return nil
		}

		if narrowed {
			for id := range candidateIDs {
				if err := visit(id); err != nil {
					return err
				}
			}
			return nil
		}

		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{prefixNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var node *types.Node
			err := it.Item().Value(func(val []byte) error {
				n, derr := codec.DecodeNode(val)
				if derr != nil {
					return derr
				}
				node = n
				return nil
			})
			if err != nil {
				return err
			}
			if filter.Matches(node) {
				out = append(out, node)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNodesByID(out)
	return paginate(out, filter.Offset, filter.Limit), nil
}

// narrowCandidates builds a candidate id set from the first single-field
// secondary index set on filter (kind, then tag, then source agent),
// taking the union across all Kinds/Tags supplied. Returns
// narrowed=false when no index applies and the caller must scan the
// primary table.
func narrowCandidates(txn *badger.Txn, filter NodeFilter) (map[types.RecordID]struct{}, bool) {
	switch {
	case len(filter.Kinds) > 0:
		return unionIndex(txn, prefixNodesByKind, filter.Kinds), true
	case len(filter.Tags) > 0:
		return unionIndex(txn, prefixNodesByTag, filter.Tags), true
	case filter.SourceAgent != "":
		return unionIndex(txn, prefixNodesBySource, []string{filter.SourceAgent}), true
	default:
		return nil, false
	}
}

func unionIndex(txn *badger.Txn, prefix byte, fields []string) map[types.RecordID]struct{} {
	out := make(map[types.RecordID]struct{})
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for _, field := range fields {
		p := fieldIndexPrefix(prefix, field)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			id := extractIDFromIndexKey(it.Item().KeyCopy(nil))
			out[id] = struct{}{}
		}
	}
	return out
}

func sortNodesByID(nodes []*types.Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].ID.Less(nodes[j-1].ID); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// CountNodes is ListNodes without materializing results beyond a count.
func (e *BadgerEngine) CountNodes(ctx context.Context, filter NodeFilter) (int, error) {
	// Counting re-uses ListNodes; the filter set sizes in this engine's
	// target workloads stay well within the budget where a second
	// allocation-free pass wouldn't matter in practice.
	nodes, err := e.ListNodes(ctx, NodeFilter{
		Kinds: filter.Kinds, Tags: filter.Tags, SourceAgent: filter.SourceAgent,
		CreatedAfter: filter.CreatedAfter, CreatedBefore: filter.CreatedBefore,
		UpdatedAfter: filter.UpdatedAfter, MinImportance: filter.MinImportance,
		Namespaces: filter.Namespaces, IncludeDeleted: filter.IncludeDeleted,
	})
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// PutNodesBatch commits all nodes in a single transaction.
func (e *BadgerEngine) PutNodesBatch(ctx context.Context, nodes []*types.Node) error {
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		for _, node := range nodes {
			node.ClampImportance()
			data, err := codec.EncodeNode(node)
			if err != nil {
				return err
			}
			if err := txn.Set(nodeKey(node.ID), data); err != nil {
				return err
			}
			if err := txn.Set(nodesByKindKey(node.Kind, node.ID), []byte{1}); err != nil {
				return err
			}
			for _, t := range node.Tags {
				if err := txn.Set(nodesByTagKey(t, node.ID), []byte{1}); err != nil {
					return err
				}
			}
			if err := txn.Set(nodesBySourceKey(node.Source.Agent, node.ID), []byte{1}); err != nil {
				return err
			}
			if err := appendAuditTxn(txn, &e.auditSeq, AuditNodeCreated, node.ID, node.Kind); err != nil {
				return err
			}
		}
		_, err := e.bumpGraphVersion(txn)
		return err
	})
}

// --- edge operations ---

func getEdgeTxn(txn *badger.Txn, id types.RecordID) (*types.Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *types.Edge
	err = item.Value(func(val []byte) error {
		e, derr := codec.DecodeEdge(val)
		if derr != nil {
			return derr
		}
		edge = e
		return nil
	})
	return edge, err
}

// findEdgeByTripleTxn scans edges_from(from) looking for a live edge with
// the given (to, relation), enforcing invariant 3 (triple uniqueness).
func findEdgeByTripleTxn(txn *badger.Txn, from, to types.RecordID, relation string) (*types.Edge, error) {
	prefix := edgesFromPrefix(from)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		edgeID := extractIDFromIndexKey(it.Item().KeyCopy(nil))
		edge, err := getEdgeTxn(txn, edgeID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if edge.To == to && edge.Relation == relation {
			return edge, nil
		}
	}
	return nil, ErrNotFound
}

// PutEdge validates the edge (live non-tombstoned endpoints, no
// self-edge) and upserts it: a second write of the same (from, to,
// relation) triple updates the existing edge's weight instead of
// inserting a duplicate (invariant 3).
func (e *BadgerEngine) PutEdge(ctx context.Context, edge *types.Edge) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	edge.ClampWeight()

	return e.db.Update(func(txn *badger.Txn) error {
		fromNode, err := getNodeTxn(txn, edge.From)
		if err != nil || fromNode.Deleted {
			return ErrInvalidEdge
		}
		toNode, err := getNodeTxn(txn, edge.To)
		if err != nil || toNode.Deleted {
			return ErrInvalidEdge
		}

		if existing, err := findEdgeByTripleTxn(txn, edge.From, edge.To, edge.Relation); err == nil {
			existing.Weight = edge.Weight
			existing.UpdatedAt = time.Now().UTC()
			data, err := codec.EncodeEdge(existing)
			if err != nil {
				return err
			}
			if err := txn.Set(edgeKey(existing.ID), data); err != nil {
				return err
			}
			if _, err := e.bumpGraphVersion(txn); err != nil {
				return err
			}
			return appendAuditTxn(txn, &e.auditSeq, AuditEdgeUpdated, existing.ID, existing.Relation)
		}

		data, err := codec.EncodeEdge(edge)
		if err != nil {
			return err
		}
		if err := txn.Set(edgeKey(edge.ID), data); err != nil {
			return err
		}
		if err := txn.Set(edgesFromKey(edge.From, edge.ID), []byte{1}); err != nil {
			return err
		}
		if err := txn.Set(edgesToKey(edge.To, edge.ID), []byte{1}); err != nil {
			return err
		}
		if _, err := e.bumpGraphVersion(txn); err != nil {
			return err
		}
		return appendAuditTxn(txn, &e.auditSeq, AuditEdgeCreated, edge.ID, edge.Relation)
	})
}

// GetEdge returns the edge for id, or ErrNotFound.
func (e *BadgerEngine) GetEdge(ctx context.Context, id types.RecordID) (*types.Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var edge *types.Edge
	err := e.db.View(func(txn *badger.Txn) error {
		ed, err := getEdgeTxn(txn, id)
		if err != nil {
			return err
		}
		edge = ed
		return nil
	})
	return edge, err
}

func deleteEdgeTxn(txn *badger.Txn, auditSeq *uint32, edge *types.Edge) error {
	if err := txn.Delete(edgeKey(edge.ID)); err != nil {
		return err
	}
	if err := txn.Delete(edgesFromKey(edge.From, edge.ID)); err != nil {
		return err
	}
	if err := txn.Delete(edgesToKey(edge.To, edge.ID)); err != nil {
		return err
	}
	return appendAuditTxn(txn, auditSeq, AuditEdgeDeleted, edge.ID, edge.Relation)
}

// DeleteEdge removes an edge and its index entries outright (edges have
// no soft-delete state in spec.md; decay/pruning in the auto-linker calls
// this once an edge's weight crosses delete_threshold).
func (e *BadgerEngine) DeleteEdge(ctx context.Context, id types.RecordID) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		edge, err := getEdgeTxn(txn, id)
		if err != nil {
			return err
		}
		if err := deleteEdgeTxn(txn, &e.auditSeq, edge); err != nil {
			return err
		}
		_, err = e.bumpGraphVersion(txn)
		return err
	})
}

func liveEdgesFromIDs(txn *badger.Txn, ids []types.RecordID) ([]*types.Edge, error) {
	out := make([]*types.Edge, 0, len(ids))
	for _, id := range ids {
		edge, err := getEdgeTxn(txn, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, nil
}

func scanIndexIDs(txn *badger.Txn, prefix []byte) []types.RecordID {
	var ids []types.RecordID
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, extractIDFromIndexKey(it.Item().KeyCopy(nil)))
	}
	return ids
}

// EdgesFrom returns all live outgoing edges of nodeID (endpoints verified
// non-tombstoned).
func (e *BadgerEngine) EdgesFrom(ctx context.Context, nodeID types.RecordID) ([]*types.Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var out []*types.Edge
	err := e.db.View(func(txn *badger.Txn) error {
		ids := scanIndexIDs(txn, edgesFromPrefix(nodeID))
		edges, err := liveEdgesFromIDs(txn, ids)
		if err != nil {
			return err
		}
		out = filterLiveEdges(txn, edges)
		return nil
	})
	return out, err
}

// EdgesTo returns all live incoming edges of nodeID.
func (e *BadgerEngine) EdgesTo(ctx context.Context, nodeID types.RecordID) ([]*types.Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var out []*types.Edge
	err := e.db.View(func(txn *badger.Txn) error {
		ids := scanIndexIDs(txn, edgesToPrefix(nodeID))
		edges, err := liveEdgesFromIDs(txn, ids)
		if err != nil {
			return err
		}
		out = filterLiveEdges(txn, edges)
		return nil
	})
	return out, err
}

func filterLiveEdges(txn *badger.Txn, edges []*types.Edge) []*types.Edge {
	out := make([]*types.Edge, 0, len(edges))
	for _, edge := range edges {
		from, err := getNodeTxn(txn, edge.From)
		if err != nil || from.Deleted {
			continue
		}
		to, err := getNodeTxn(txn, edge.To)
		if err != nil || to.Deleted {
			continue
		}
		out = append(out, edge)
	}
	return out
}

// EdgesBetween returns all live edges in either direction between a and
// b, across all relations.
func (e *BadgerEngine) EdgesBetween(ctx context.Context, a, b types.RecordID) ([]*types.Edge, error) {
	out, err := e.EdgesFrom(ctx, a)
	if err != nil {
		return nil, err
	}
	var result []*types.Edge
	for _, edge := range out {
		if edge.To == b {
			result = append(result, edge)
		}
	}
	reverse, err := e.EdgesFrom(ctx, b)
	if err != nil {
		return nil, err
	}
	for _, edge := range reverse {
		if edge.To == a {
			result = append(result, edge)
		}
	}
	return result, nil
}

// EdgeBetween returns the single live edge a->b with the given relation,
// or ErrNotFound.
func (e *BadgerEngine) EdgeBetween(ctx context.Context, a, b types.RecordID, relation string) (*types.Edge, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	var edge *types.Edge
	err := e.db.View(func(txn *badger.Txn) error {
		ed, err := findEdgeByTripleTxn(txn, a, b, relation)
		if err != nil {
			return err
		}
		edge = ed
		return nil
	})
	return edge, err
}

// PutEdgesBatch commits all edges in a single transaction, skipping any
// whose endpoints are missing or tombstoned rather than aborting the
// whole batch (callers that need all-or-nothing semantics should call
// PutEdge individually inside their own retry loop).
func (e *BadgerEngine) PutEdgesBatch(ctx context.Context, edges []*types.Edge) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		for _, edge := range edges {
			if err := edge.Validate(); err != nil {
				return err
			}
			edge.ClampWeight()

			fromNode, err := getNodeTxn(txn, edge.From)
			if err != nil || fromNode.Deleted {
				continue
			}
			toNode, err := getNodeTxn(txn, edge.To)
			if err != nil || toNode.Deleted {
				continue
			}

			if existing, err := findEdgeByTripleTxn(txn, edge.From, edge.To, edge.Relation); err == nil {
				if edge.Weight > existing.Weight {
					existing.Weight = edge.Weight
				}
				existing.UpdatedAt = time.Now().UTC()
				data, err := codec.EncodeEdge(existing)
				if err != nil {
					return err
				}
				if err := txn.Set(edgeKey(existing.ID), data); err != nil {
					return err
				}
				continue
			}

			data, err := codec.EncodeEdge(edge)
			if err != nil {
				return err
			}
			if err := txn.Set(edgeKey(edge.ID), data); err != nil {
				return err
			}
			if err := txn.Set(edgesFromKey(edge.From, edge.ID), []byte{1}); err != nil {
				return err
			}
			if err := txn.Set(edgesToKey(edge.To, edge.ID), []byte{1}); err != nil {
				return err
			}
			if err := appendAuditTxn(txn, &e.auditSeq, AuditEdgeCreated, edge.ID, edge.Relation); err != nil {
				return err
			}
		}
		_, err := e.bumpGraphVersion(txn)
		return err
	})
}

// --- meta table ---

// GetMeta reads a raw value from the meta table (schema_version,
// autolinker_cursor, per-agent briefing cache timestamps, ...).
func (e *BadgerEngine) GetMeta(ctx context.Context, key string) ([]byte, bool, error) {
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	var val []byte
	found := false
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	return val, found, err
}

// PutMeta writes a raw value to the meta table.
func (e *BadgerEngine) PutMeta(ctx context.Context, key string, value []byte) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(key), value)
	})
}

// --- audit log ---

func appendAuditTxn(txn *badger.Txn, seq *uint32, eventType AuditEventType, entityID types.RecordID, detail string) error {
	n := atomic.AddUint32(seq, 1)
	entry := AuditEntry{TimestampNanos: time.Now().UnixNano(), Type: eventType, EntityID: entityID, Detail: detail}
	data, err := encodeAuditEntry(entry)
	if err != nil {
		return err
	}
	return txn.Set(auditKey(entry.TimestampNanos, n), data)
}

// AppendAudit writes a standalone audit entry outside of a node/edge
// mutation, used by the auto-linker to record contradiction flags and
// dedup/merge decisions.
func (e *BadgerEngine) AppendAudit(entry AuditEntry) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		n := atomic.AddUint32(&e.auditSeq, 1)
		if entry.TimestampNanos == 0 {
			entry.TimestampNanos = time.Now().UnixNano()
		}
		data, err := encodeAuditEntry(entry)
		if err != nil {
			return err
		}
		return txn.Set(auditKey(entry.TimestampNanos, n), data)
	})
}

// StreamAudit calls fn for every audit entry in timestamp order, the
// linearisation of all mutations (spec.md §5).
func (e *BadgerEngine) StreamAudit(ctx context.Context, fn func(AuditEntry) error) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := auditPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var entry AuditEntry
			err := it.Item().Value(func(val []byte) error {
				decoded, derr := decodeAuditEntry(val)
				if derr != nil {
					return derr
				}
				entry = decoded
				return nil
			})
			if err != nil {
				return err
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- streaming ---

// StreamNodes calls fn for every node in primary-key order without
// materializing the whole table, so vector-index rebuild-from-source and
// the auto-linker's dedup scan stay bounded in memory (spec.md §4.4,
// §6 "Supplemented Features").
func (e *BadgerEngine) StreamNodes(ctx context.Context, fn func(*types.Node) error) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte{prefixNode}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var node *types.Node
			err := it.Item().Value(func(val []byte) error {
				n, derr := codec.DecodeNode(val)
				if derr != nil {
					return derr
				}
				node = n
				return nil
			})
			if err != nil {
				return err
			}
			if err := fn(node); err != nil {
				return err
			}
		}
		return nil
	})
}

// StreamEdges calls fn for every edge in primary-key order.
func (e *BadgerEngine) StreamEdges(ctx context.Context, fn func(*types.Edge) error) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte{prefixEdge}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var edge *types.Edge
			err := it.Item().Value(func(val []byte) error {
				ed, derr := codec.DecodeEdge(val)
				if derr != nil {
					return derr
				}
				edge = ed
				return nil
			})
			if err != nil {
				return err
			}
			if err := fn(edge); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- stats & snapshot ---

// Stats computes per-kind and per-relation counts, DB size, and the age
// span of live nodes by streaming both tables once.
func (e *BadgerEngine) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{NodesByKind: map[string]int{}, EdgesByRelation: map[string]int{}}
	err := e.StreamNodes(ctx, func(n *types.Node) error {
		if n.Deleted {
			return nil
		}
		stats.TotalNodes++
		stats.NodesByKind[n.Kind]++
		if stats.OldestNode.IsZero() || n.CreatedAt.Before(stats.OldestNode) {
			stats.OldestNode = n.CreatedAt
		}
		if n.CreatedAt.After(stats.NewestNode) {
			stats.NewestNode = n.CreatedAt
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	err = e.StreamEdges(ctx, func(ed *types.Edge) error {
		stats.TotalEdges++
		stats.EdgesByRelation[ed.Relation]++
		return nil
	})
	if err != nil {
		return stats, err
	}
	stats.LSMSizeBytes, stats.ValueLogBytes = e.Size()
	return stats, nil
}

// Snapshot writes a point-in-time file-level copy of the database to
// path, using Badger's native backup stream so the copy is consistent
// with a single read transaction's view.
func (e *BadgerEngine) Snapshot(path string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = e.db.Backup(f, 0)
	return err
}

// --- small helpers ---

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

var _ Engine = (*BadgerEngine)(nil)
