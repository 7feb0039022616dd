package vectorindex

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/orneryd/knowgraph/pkg/types"
)

type serializedNode struct {
	ID          types.RecordID
	Vector      []float32
	Kind        string
	SourceAgent string
	Level       int
	Neighbors   [][]types.RecordID
}

type serializedIndex struct {
	Dimensions int
	Config     Config
	EntryPoint types.RecordID
	MaxLevel   int
	Nodes      []serializedNode
	Checksum   uint64
}

func (idx *Index) checksum(nodes []serializedNode) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeInt := func(v int) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (56 - 8*i))
		}
		h.Write(buf[:])
	}
	writeInt(idx.dimensions)
	writeInt(len(nodes))
	for _, n := range nodes {
		h.Write(n.ID[:])
	}
	return h.Sum64()
}

// Save writes the index to a gob-encoded sidecar file alongside the
// database (spec.md §4.4, §6). The façade calls it from DB.Close only;
// nothing saves the index between open and close.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nodes := make([]serializedNode, 0, len(idx.nodes))
	for _, n := range idx.nodes {
		nodes = append(nodes, serializedNode{
			ID: n.id, Vector: n.vector, Kind: n.kind, SourceAgent: n.sourceAgent,
			Level: n.level, Neighbors: n.neighbors,
		})
	}

	s := serializedIndex{
		Dimensions: idx.dimensions,
		Config:     idx.config,
		EntryPoint: idx.entryPoint,
		MaxLevel:   idx.maxLevel,
		Nodes:      nodes,
		Checksum:   idx.checksum(nodes),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vectorindex: save: %w", err)
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(s)
}

// Load reads a sidecar file written by Save. On checksum mismatch or any
// decode error, it returns an error and the caller (the façade) must fall
// back to Rebuild, per spec.md §4.4's corruption-detection requirement.
func Load(path string, config Config) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: load: %w", err)
	}
	defer f.Close()

	var s serializedIndex
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("vectorindex: load: decode: %w", err)
	}

	idx := New(s.Dimensions, s.Config)
	if idx.checksum(s.Nodes) != s.Checksum {
		return nil, fmt.Errorf("vectorindex: load: checksum mismatch, index file is corrupt")
	}

	idx.entryPoint = s.EntryPoint
	idx.maxLevel = s.MaxLevel
	for _, n := range s.Nodes {
		idx.nodes[n.ID] = &hnswNode{
			id: n.ID, vector: n.Vector, kind: n.Kind, sourceAgent: n.SourceAgent,
			level: n.Level, neighbors: n.Neighbors,
		}
	}
	return idx, nil
}
