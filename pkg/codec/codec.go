// Package codec implements the positional, length-prefixed binary record
// format spec.md §4.1 and §6 define for Node and Edge. Encoding is a pure
// function of the record's fields: re-encoding a decoded record yields
// byte-identical output, and the golden-bytes test in codec_test.go pins
// the exact layout so an accidental field reorder fails immediately.
//
// Field order is fixed and versioned by SchemaVersion; new fields may only
// be appended at the end. Any other change is a schema-breaking change and
// requires a migration routine plus a SchemaVersion bump.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/orneryd/knowgraph/pkg/types"
)

// SchemaVersion is the current on-wire record layout version, stamped in
// the storage engine's meta table and refused on open if the database's
// own schema_version is newer than this binary understands.
const SchemaVersion = 2

// EncodeNode renders n to its positional binary form.
func EncodeNode(n *types.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(n.ID.Bytes())
	if err := writeString(&buf, n.Kind); err != nil {
		return nil, err
	}
	if err := writeString(&buf, n.Title); err != nil {
		return nil, err
	}
	if err := writeString(&buf, n.Body); err != nil {
		return nil, err
	}
	metaBytes, err := encodeMetadata(n.Metadata)
	if err != nil {
		return nil, &types.CodecError{Reason: "metadata: " + err.Error()}
	}
	writeBytes(&buf, metaBytes)

	writeUint32(&buf, uint32(len(n.Tags)))
	for _, tag := range n.Tags {
		if err := writeString(&buf, tag); err != nil {
			return nil, err
		}
	}

	if err := writeString(&buf, n.Source.Agent); err != nil {
		return nil, err
	}
	if err := writeOptString(&buf, n.Source.Session); err != nil {
		return nil, err
	}
	if err := writeOptString(&buf, n.Source.Channel); err != nil {
		return nil, err
	}

	writeFloat32(&buf, n.Importance)
	writeUint64(&buf, n.AccessCount)

	if n.Embedding == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		writeUint32(&buf, uint32(len(n.Embedding)))
		for _, f := range n.Embedding {
			writeFloat32(&buf, f)
		}
	}

	writeInt64(&buf, n.CreatedAt.UnixNano())
	writeInt64(&buf, n.UpdatedAt.UnixNano())

	if n.Deleted {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := writeOptString(&buf, n.Namespace); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeNode parses the positional binary form produced by EncodeNode.
func DecodeNode(data []byte) (*types.Node, error) {
	r := &reader{buf: data}
	n := &types.Node{}

	idBytes, err := r.readN(16)
	if err != nil {
		return nil, err
	}
	copy(n.ID[:], idBytes)

	if n.Kind, err = r.readString(); err != nil {
		return nil, err
	}
	if n.Title, err = r.readString(); err != nil {
		return nil, err
	}
	if n.Body, err = r.readString(); err != nil {
		return nil, err
	}
	metaBytes, err := r.readBytes()
	if err != nil {
		return nil, err
	}
	if n.Metadata, err = decodeMetadata(metaBytes); err != nil {
		return nil, &types.CodecError{Reason: "metadata: " + err.Error()}
	}

	tagCount, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if tagCount > 0 {
		n.Tags = make([]string, tagCount)
		for i := range n.Tags {
			if n.Tags[i], err = r.readString(); err != nil {
				return nil, err
			}
		}
	}

	if n.Source.Agent, err = r.readString(); err != nil {
		return nil, err
	}
	if n.Source.Session, err = r.readOptString(); err != nil {
		return nil, err
	}
	if n.Source.Channel, err = r.readOptString(); err != nil {
		return nil, err
	}

	if n.Importance, err = r.readFloat32(); err != nil {
		return nil, err
	}
	if n.AccessCount, err = r.readUint64(); err != nil {
		return nil, err
	}

	hasEmbedding, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if hasEmbedding == 1 {
		dim, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		n.Embedding = make([]float32, dim)
		for i := range n.Embedding {
			if n.Embedding[i], err = r.readFloat32(); err != nil {
				return nil, err
			}
		}
	} else if hasEmbedding != 0 {
		return nil, &types.CodecError{Reason: fmt.Sprintf("invalid embedding presence byte %d", hasEmbedding)}
	}

	createdNanos, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	n.CreatedAt = timeFromNanos(createdNanos)

	updatedNanos, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	n.UpdatedAt = timeFromNanos(updatedNanos)

	deletedByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	n.Deleted = deletedByte == 1

	if n.Namespace, err = r.readOptString(); err != nil {
		return nil, err
	}

	if !r.atEOF() {
		return nil, &types.CodecError{Reason: "trailing bytes after node record"}
	}
	return n, nil
}

// EncodeEdge renders e to its positional binary form.
func EncodeEdge(e *types.Edge) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(e.ID.Bytes())
	buf.Write(e.From.Bytes())
	buf.Write(e.To.Bytes())
	if err := writeString(&buf, e.Relation); err != nil {
		return nil, err
	}
	writeFloat32(&buf, e.Weight)

	if err := writeProvenance(&buf, e.Provenance); err != nil {
		return nil, err
	}

	writeInt64(&buf, e.CreatedAt.UnixNano())
	writeInt64(&buf, e.UpdatedAt.UnixNano())
	return buf.Bytes(), nil
}

// DecodeEdge parses the positional binary form produced by EncodeEdge.
func DecodeEdge(data []byte) (*types.Edge, error) {
	r := &reader{buf: data}
	e := &types.Edge{}

	idBytes, err := r.readN(16)
	if err != nil {
		return nil, err
	}
	copy(e.ID[:], idBytes)

	fromBytes, err := r.readN(16)
	if err != nil {
		return nil, err
	}
	copy(e.From[:], fromBytes)

	toBytes, err := r.readN(16)
	if err != nil {
		return nil, err
	}
	copy(e.To[:], toBytes)

	if e.Relation, err = r.readString(); err != nil {
		return nil, err
	}
	if e.Weight, err = r.readFloat32(); err != nil {
		return nil, err
	}

	if e.Provenance, err = readProvenance(r); err != nil {
		return nil, err
	}

	createdNanos, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	e.CreatedAt = timeFromNanos(createdNanos)

	updatedNanos, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	e.UpdatedAt = timeFromNanos(updatedNanos)

	if !r.atEOF() {
		return nil, &types.CodecError{Reason: "trailing bytes after edge record"}
	}
	return e, nil
}

func writeProvenance(buf *bytes.Buffer, p types.Provenance) error {
	buf.WriteByte(byte(p.Tag()))
	switch v := p.(type) {
	case types.ManualProvenance:
		return writeString(buf, v.By)
	case types.AutoSimilarityProvenance:
		writeFloat32(buf, v.Score)
		return nil
	case types.AutoStructuralProvenance:
		return writeString(buf, v.Rule)
	case types.ImportedProvenance:
		return writeString(buf, v.Source)
	default:
		return &types.CodecError{Reason: "unknown provenance implementation"}
	}
}

func readProvenance(r *reader) (types.Provenance, error) {
	tagByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	switch types.ProvenanceTag(tagByte) {
	case types.ProvenanceManual:
		by, err := r.readString()
		if err != nil {
			return nil, err
		}
		return types.ManualProvenance{By: by}, nil
	case types.ProvenanceAutoSimilarity:
		score, err := r.readFloat32()
		if err != nil {
			return nil, err
		}
		return types.AutoSimilarityProvenance{Score: score}, nil
	case types.ProvenanceAutoStructural:
		rule, err := r.readString()
		if err != nil {
			return nil, err
		}
		return types.AutoStructuralProvenance{Rule: rule}, nil
	case types.ProvenanceImported:
		source, err := r.readString()
		if err != nil {
			return nil, err
		}
		return types.ImportedProvenance{Source: source}, nil
	default:
		return nil, &types.CodecError{Reason: fmt.Sprintf("unknown provenance variant tag %d", tagByte)}
	}
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func timeFromNanos(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// --- low-level positional writers/readers ---

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	writeUint64(buf, uint64(v))
}

func writeFloat32(buf *bytes.Buffer, v float32) {
	writeUint32(buf, math.Float32bits(v))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return &types.CodecError{Reason: "invalid UTF-8 in string field"}
	}
	writeBytes(buf, []byte(s))
	return nil
}

func writeOptString(buf *bytes.Buffer, s string) error {
	if s == "" {
		buf.WriteByte(0)
		return nil
	}
	buf.WriteByte(1)
	return writeString(buf, s)
}

// reader is a forward-only cursor over an encoded record, used so every
// decode failure surfaces as a types.CodecError instead of a panic on
// out-of-range slicing.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) atEOF() bool { return r.pos >= len(r.buf) }

func (r *reader) readN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, &types.CodecError{Reason: "unexpected end of record"}
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) readInt64() (int64, error) {
	v, err := r.readUint64()
	return int64(v), err
}

func (r *reader) readFloat32() (float32, error) {
	v, err := r.readUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) readBytes() ([]byte, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(r.buf)-r.pos) {
		return nil, &types.CodecError{Reason: "length prefix exceeds remaining buffer"}
	}
	return r.readN(int(n))
}

func (r *reader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &types.CodecError{Reason: "invalid UTF-8 in decoded string field"}
	}
	return string(b), nil
}

func (r *reader) readOptString() (string, error) {
	present, err := r.readByte()
	if err != nil {
		return "", err
	}
	if present == 0 {
		return "", nil
	}
	if present != 1 {
		return "", &types.CodecError{Reason: fmt.Sprintf("invalid optional-string presence byte %d", present)}
	}
	return r.readString()
}
