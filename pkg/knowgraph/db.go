// Package knowgraph provides the main API for embedded knowgraph usage.
//
// This package wires the storage engine, HNSW vector index, graph
// traversal engine, hybrid retriever, auto-linker, and briefing engine
// into a single DB handle. Callers construct nodes and edges directly
// (pkg/types), ingest events through pkg/ingest's dedup-by-identity
// contract, and query through Search/HybridSearch/Briefing.
//
// Example usage:
//
//	db, err := knowgraph.Open(knowgraph.DefaultOptions("./data"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	node, deduped, err := db.Ingest(ctx, ingest.Event{
//		Kind: "fact", Title: "service is up",
//		Source: types.Source{Agent: "agent-a", Session: "sess-1"},
//	})
package knowgraph

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/orneryd/knowgraph/pkg/autolinker"
	"github.com/orneryd/knowgraph/pkg/briefing"
	"github.com/orneryd/knowgraph/pkg/decay"
	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/graph"
	"github.com/orneryd/knowgraph/pkg/hybrid"
	"github.com/orneryd/knowgraph/pkg/ingest"
	"github.com/orneryd/knowgraph/pkg/retention"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

const vectorIndexFileName = "vectors.hnsw"

// Options configures Open.
type Options struct {
	DataDir   string
	InMemory  bool
	Logger    *log.Logger
	Embedder  embedding.Embedder // defaults to embedding.NewLocal(embedding.DefaultDimensions)
	VectorCfg vectorindex.Config
	Autolink  autolinker.Config
	Decay     decay.Config
	Briefing  briefing.Config
	Retention retention.Config

	// RunBackgroundLoops starts the auto-linker and briefing precompute
	// loops on Open. Tests generally leave this false and call Tick/Get
	// directly instead.
	RunBackgroundLoops bool
}

// DefaultOptions returns Options with every collaborator's documented
// default configuration, rooted at dataDir.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:            dataDir,
		VectorCfg:          vectorindex.DefaultConfig(),
		Autolink:           autolinker.DefaultConfig(),
		Decay:              decay.DefaultConfig(),
		Briefing:           briefing.DefaultConfig(),
		Retention:          retention.DefaultConfig(),
		RunBackgroundLoops: true,
	}
}

// DB is the embedded database handle: storage plus every collaborator
// built over it.
type DB struct {
	storage storage.Engine
	index   *vectorindex.Index
	graph   *graph.Engine
	hybrid  *hybrid.Retriever
	linker  *autolinker.Engine
	brief   *briefing.Engine
	ingest  *ingest.Service
	sweeper *retention.Sweeper

	embedder  embedding.Embedder
	indexPath string
	logger    *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open creates or opens a database at opts.DataDir (or an in-memory
// instance when opts.InMemory is set), recovering the vector index from
// its sidecar file and falling back to a full rebuild from storage on
// corruption or first run.
func Open(opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder = embedding.NewLocal(embedding.DefaultDimensions)
	}

	store, err := openStorage(opts, logger)
	if err != nil {
		return nil, err
	}

	indexPath := ""
	if !opts.InMemory && opts.DataDir != "" {
		indexPath = filepath.Join(opts.DataDir, vectorIndexFileName)
	}
	idx, err := openVectorIndex(indexPath, embedder.Dimensions(), opts.VectorCfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	g, err := graph.New(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	retriever := hybrid.New(store, idx, g, embedder)
	linker := autolinker.New(store, idx, embedder, opts.Autolink, opts.Decay, logger)
	brief := briefing.New(store, g, retriever, opts.Briefing, logger)
	ingestSvc := ingest.New(store, idx, embedder)
	sweeper := retention.New(store, opts.Retention, logger)

	db := &DB{
		storage: store, index: idx, graph: g, hybrid: retriever,
		linker: linker, brief: brief, ingest: ingestSvc, sweeper: sweeper,
		embedder: embedder, indexPath: indexPath, logger: logger,
	}

	if opts.RunBackgroundLoops {
		db.startBackgroundLoops()
	}

	return db, nil
}

func openStorage(opts Options, logger *log.Logger) (storage.Engine, error) {
	if opts.InMemory {
		return storage.NewInMemoryBadgerEngine()
	}
	return storage.NewBadgerEngine(storage.Options{
		DataDir: opts.DataDir, Logger: logger, SyncWrites: true,
	})
}

// openVectorIndex loads the sidecar file at path; on any error (including
// "file does not exist" on first run) it rebuilds from storage instead,
// satisfying spec.md §4.4's corruption-recovery requirement.
func openVectorIndex(path string, dims int, cfg vectorindex.Config, store storage.Engine, logger *log.Logger) (*vectorindex.Index, error) {
	if path != "" {
		if idx, err := vectorindex.Load(path, cfg); err == nil {
			return idx, nil
		} else {
			logger.Printf("knowgraph: vector index load %q failed, rebuilding: %v", path, err)
		}
	}

	idx := vectorindex.New(dims, cfg)
	err := idx.Rebuild(context.Background(), func(ctx context.Context, visit func(id types.RecordID, vec []float32, kind, sourceAgent string) error) error {
		return store.StreamNodes(ctx, func(n *types.Node) error {
			if n.Deleted || len(n.Embedding) == 0 {
				return nil
			}
			return visit(n.ID, n.Embedding, n.Kind, n.Source.Agent)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("knowgraph: rebuild vector index: %w", err)
	}
	return idx, nil
}

func (db *DB) startBackgroundLoops() {
	ctx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel

	db.wg.Add(1)
	go func() {
		defer db.wg.Done()
		db.linker.Run(ctx)
	}()

	db.wg.Add(1)
	go func() {
		defer db.wg.Done()
		db.sweeper.Run(ctx)
	}()

	if len(db.brief.Config().PrecomputeAgents) > 0 {
		db.wg.Add(1)
		go func() {
			defer db.wg.Done()
			db.brief.RunPrecompute(ctx)
		}()
	}
}

// Close stops any background loops, persists the vector index sidecar
// file (when file-backed), and closes the storage engine.
func (db *DB) Close() error {
	if db.cancel != nil {
		db.cancel()
		db.wg.Wait()
	}
	if db.indexPath != "" {
		if err := db.index.Save(db.indexPath); err != nil {
			db.logger.Printf("knowgraph: save vector index: %v", err)
		}
	}
	return db.storage.Close()
}

// Ingest stores ev as a node, deduplicating by (source.agent,
// source.session, title) per pkg/ingest's contract.
func (db *DB) Ingest(ctx context.Context, ev ingest.Event) (*types.Node, bool, error) {
	return db.ingest.Ingest(ctx, ev)
}

// GetNode returns the node for id, or storage.ErrNotFound.
func (db *DB) GetNode(ctx context.Context, id types.RecordID) (*types.Node, error) {
	return db.storage.GetNode(ctx, id, false)
}

// Forget soft-deletes a node: it drops out of default queries and
// traversals immediately, but isn't purged until pkg/retention's grace
// period elapses.
func (db *DB) Forget(ctx context.Context, id types.RecordID) error {
	if err := db.storage.DeleteNode(ctx, id); err != nil {
		return err
	}
	db.index.Remove(id)
	return nil
}

// Link creates or updates a manual edge between two live nodes.
func (db *DB) Link(ctx context.Context, from, to types.RecordID, relation string, weight float32, by string) (*types.Edge, error) {
	edge := &types.Edge{
		ID: types.NewRecordID(), From: from, To: to, Relation: relation, Weight: weight,
		Provenance: types.ManualProvenance{By: by},
	}
	if err := db.storage.PutEdge(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// Neighbors returns id's live neighbors in the given direction, optionally
// restricted to relationFilter.
func (db *DB) Neighbors(ctx context.Context, id types.RecordID, dir graph.Direction, relationFilter []string) ([]graph.Neighbor, error) {
	return db.graph.Neighbors(ctx, id, dir, relationFilter)
}

// Traverse runs a graph traversal starting from req.Start.
func (db *DB) Traverse(ctx context.Context, req graph.Request) (*graph.Subgraph, error) {
	return db.graph.Traverse(ctx, req)
}

// Search runs a pure vector similarity search for query, with no graph
// re-ranking.
func (db *DB) Search(ctx context.Context, query string, k int, filter *vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	vec, err := db.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return db.index.Search(ctx, vec, k, filter)
}

// HybridSearch runs the blended vector + graph-proximity retriever
// (pkg/hybrid).
func (db *DB) HybridSearch(ctx context.Context, req hybrid.Request) ([]hybrid.Result, error) {
	return db.hybrid.Query(ctx, req)
}

// Briefing returns the agent's current briefing document (pkg/briefing),
// serving from cache when the graph hasn't changed since it was last
// generated.
func (db *DB) Briefing(ctx context.Context, agentID string, compact bool) (*briefing.Briefing, error) {
	return db.brief.Get(ctx, agentID, compact)
}

// Tick runs one auto-linker reconciliation cycle synchronously, primarily
// for tests and the smoke-test CLI; production use relies on the
// background loop started by Open when RunBackgroundLoops is set.
func (db *DB) Tick(ctx context.Context) (autolinker.Metrics, error) {
	return db.linker.Tick(ctx)
}

// Sweep runs one retention sweep synchronously, hard-deleting any
// soft-deleted node whose grace period has elapsed. Production use relies
// on the background loop started by Open when RunBackgroundLoops is set.
func (db *DB) Sweep(ctx context.Context) (retention.Metrics, error) {
	return db.sweeper.Sweep(ctx)
}

// Stats reports node/edge counts and storage size.
func (db *DB) Stats(ctx context.Context) (storage.Stats, error) {
	return db.storage.Stats(ctx)
}

// Snapshot writes a point-in-time backup of the database to path.
func (db *DB) Snapshot(path string) error {
	return db.storage.Snapshot(path)
}
