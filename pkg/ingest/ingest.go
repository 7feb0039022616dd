// Package ingest implements the Ingest interface (spec.md §6): turn an
// inbound event into a stored, embedded node, skipping the embed-and-index
// steps when an identical node already exists for the same agent session.
//
// Ingest deliberately does not invoke the auto-linker directly — the
// background reconciliation loop (pkg/autolinker) picks up every new node
// on its own cursor-driven schedule. Ingest's only job is (a) construct,
// (b) dedup-by-identity, (c) embed, (d) write, (e) index.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/orneryd/knowgraph/pkg/embedding"
	"github.com/orneryd/knowgraph/pkg/storage"
	"github.com/orneryd/knowgraph/pkg/types"
	"github.com/orneryd/knowgraph/pkg/vectorindex"
)

// Event is the caller-supplied shape of one inbound memory. ID, CreatedAt,
// and Embedding are filled in by Ingest and must be left zero by the
// caller.
type Event struct {
	Kind       string
	Title      string
	Body       string
	Metadata   map[string]any
	Tags       []string
	Source     types.Source
	Importance float32
	Namespace  string
}

// Service wires storage, the vector index, and the embedding service
// together behind the dedup-by-identity contract.
type Service struct {
	storage  storage.Engine
	index    *vectorindex.Index
	embedder embedding.Embedder
}

// New builds an ingest Service.
func New(store storage.Engine, index *vectorindex.Index, embedder embedding.Embedder) *Service {
	return &Service{storage: store, index: index, embedder: embedder}
}

// Ingest stores ev as a new node, unless a live node with the same
// (source.agent, source.session, title) identity already exists, in which
// case the existing node is returned unchanged (spec.md §6 "dedup-by-
// identity"). The returned bool reports whether an existing node was
// reused instead of a new one being created.
func (s *Service) Ingest(ctx context.Context, ev Event) (*types.Node, bool, error) {
	if ev.Source.Session != "" {
		existing, err := s.findByIdentity(ctx, ev)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	now := time.Now().UTC()
	node := &types.Node{
		ID:         types.NewRecordID(),
		Kind:       ev.Kind,
		Title:      ev.Title,
		Body:       ev.Body,
		Metadata:   ev.Metadata,
		Tags:       ev.Tags,
		Source:     ev.Source,
		Importance: ev.Importance,
		Namespace:  ev.Namespace,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	vec, err := s.embedder.Embed(ctx, node.EmbeddingInput())
	if err != nil {
		return nil, false, err
	}
	node.Embedding = vec

	if err := s.storage.PutNode(ctx, node); err != nil {
		return nil, false, err
	}
	if err := s.index.Insert(node.ID, vec, node.Kind, node.Source.Agent); err != nil {
		return nil, false, err
	}

	return node, false, nil
}

// findByIdentity looks for a live node from the same agent session whose
// title matches ev.Title case-insensitively. Sessions are expected to hold
// at most a few hundred live nodes, so a linear scan of that one agent's
// nodes is cheap relative to the embedding call it would otherwise save.
func (s *Service) findByIdentity(ctx context.Context, ev Event) (*types.Node, error) {
	candidates, err := s.storage.ListNodes(ctx, storage.NodeFilter{SourceAgent: ev.Source.Agent})
	if err != nil {
		return nil, err
	}
	title := strings.ToLower(strings.TrimSpace(ev.Title))
	for _, n := range candidates {
		if n.Source.Session == ev.Source.Session && strings.ToLower(strings.TrimSpace(n.Title)) == title {
			return n, nil
		}
	}
	return nil, nil
}
