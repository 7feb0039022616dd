package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encodeAuditEntry uses the same positional, length-prefixed shape as
// pkg/codec's record format, kept local to this package since AuditEntry
// is a storage-engine-only concern, not part of the node/edge data model.
func encodeAuditEntry(e AuditEntry) ([]byte, error) {
	var buf bytes.Buffer

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(e.TimestampNanos))
	buf.Write(ts[:])

	typeBytes := []byte(e.Type)
	var tlen [4]byte
	binary.BigEndian.PutUint32(tlen[:], uint32(len(typeBytes)))
	buf.Write(tlen[:])
	buf.Write(typeBytes)

	buf.Write(e.EntityID.Bytes())

	detailBytes := []byte(e.Detail)
	var dlen [4]byte
	binary.BigEndian.PutUint32(dlen[:], uint32(len(detailBytes)))
	buf.Write(dlen[:])
	buf.Write(detailBytes)

	return buf.Bytes(), nil
}

func decodeAuditEntry(data []byte) (AuditEntry, error) {
	var e AuditEntry
	if len(data) < 8+4 {
		return e, fmt.Errorf("storage: truncated audit entry")
	}
	pos := 0
	e.TimestampNanos = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
	pos += 8

	tlen := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(tlen) > len(data) {
		return e, fmt.Errorf("storage: truncated audit entry type")
	}
	e.Type = AuditEventType(data[pos : pos+int(tlen)])
	pos += int(tlen)

	if pos+16 > len(data) {
		return e, fmt.Errorf("storage: truncated audit entry entity id")
	}
	copy(e.EntityID[:], data[pos:pos+16])
	pos += 16

	if pos+4 > len(data) {
		return e, fmt.Errorf("storage: truncated audit entry detail length")
	}
	dlen := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(dlen) > len(data) {
		return e, fmt.Errorf("storage: truncated audit entry detail")
	}
	e.Detail = string(data[pos : pos+int(dlen)])

	return e, nil
}
