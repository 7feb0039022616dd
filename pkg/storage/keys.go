package storage

import (
	"encoding/binary"

	"github.com/orneryd/knowgraph/pkg/types"
)

// Key-prefix scheme for the single BadgerDB keyspace. Every logical table
// in spec.md §4.2 maps to one prefix byte; multimap secondaries append the
// indexed field then a zero-byte separator then the 16-byte record id, so
// a prefix scan over (prefix + field + 0x00) enumerates every id indexed
// under that field value.
const (
	prefixNode          byte = 0x01
	prefixEdge          byte = 0x02
	prefixNodesByKind   byte = 0x03
	prefixNodesByTag    byte = 0x04
	prefixNodesBySource byte = 0x05
	prefixEdgesFrom     byte = 0x06
	prefixEdgesTo       byte = 0x07
	prefixMeta          byte = 0x08
	prefixAudit         byte = 0x09
)

const sep = 0x00

func nodeKey(id types.RecordID) []byte {
	k := make([]byte, 1+16)
	k[0] = prefixNode
	copy(k[1:], id[:])
	return k
}

func edgeKey(id types.RecordID) []byte {
	k := make([]byte, 1+16)
	k[0] = prefixEdge
	copy(k[1:], id[:])
	return k
}

func fieldIndexKey(prefix byte, field string, id types.RecordID) []byte {
	k := make([]byte, 0, 1+len(field)+1+16)
	k = append(k, prefix)
	k = append(k, field...)
	k = append(k, sep)
	k = append(k, id[:]...)
	return k
}

func fieldIndexPrefix(prefix byte, field string) []byte {
	k := make([]byte, 0, 1+len(field)+1)
	k = append(k, prefix)
	k = append(k, field...)
	k = append(k, sep)
	return k
}

func nodesByKindKey(kind string, id types.RecordID) []byte {
	return fieldIndexKey(prefixNodesByKind, kind, id)
}
func nodesByKindPrefix(kind string) []byte { return fieldIndexPrefix(prefixNodesByKind, kind) }

func nodesByTagKey(tag string, id types.RecordID) []byte {
	return fieldIndexKey(prefixNodesByTag, tag, id)
}
func nodesByTagPrefix(tag string) []byte { return fieldIndexPrefix(prefixNodesByTag, tag) }

func nodesBySourceKey(agent string, id types.RecordID) []byte {
	return fieldIndexKey(prefixNodesBySource, agent, id)
}
func nodesBySourcePrefix(agent string) []byte { return fieldIndexPrefix(prefixNodesBySource, agent) }

func edgesFromKey(nodeID types.RecordID, edgeID types.RecordID) []byte {
	k := make([]byte, 1+16+16)
	k[0] = prefixEdgesFrom
	copy(k[1:17], nodeID[:])
	copy(k[17:33], edgeID[:])
	return k
}
func edgesFromPrefix(nodeID types.RecordID) []byte {
	k := make([]byte, 1+16)
	k[0] = prefixEdgesFrom
	copy(k[1:], nodeID[:])
	return k
}

func edgesToKey(nodeID types.RecordID, edgeID types.RecordID) []byte {
	k := make([]byte, 1+16+16)
	k[0] = prefixEdgesTo
	copy(k[1:17], nodeID[:])
	copy(k[17:33], edgeID[:])
	return k
}
func edgesToPrefix(nodeID types.RecordID) []byte {
	k := make([]byte, 1+16)
	k[0] = prefixEdgesTo
	copy(k[1:], nodeID[:])
	return k
}

func extractIDFromIndexKey(key []byte) types.RecordID {
	var id types.RecordID
	copy(id[:], key[len(key)-16:])
	return id
}

func metaKey(key string) []byte {
	k := make([]byte, 0, 1+len(key))
	k = append(k, prefixMeta)
	k = append(k, key...)
	return k
}

func auditKey(tsNanos int64, seq uint32) []byte {
	k := make([]byte, 1+8+4)
	k[0] = prefixAudit
	binary.BigEndian.PutUint64(k[1:9], uint64(tsNanos))
	binary.BigEndian.PutUint32(k[9:13], seq)
	return k
}

func auditPrefix() []byte { return []byte{prefixAudit} }
