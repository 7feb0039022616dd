package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/knowgraph/pkg/types"
)

func fixedID(b byte) types.RecordID {
	var id types.RecordID
	for i := range id {
		id[i] = b
	}
	return id
}

func goldenNode() *types.Node {
	return &types.Node{
		ID:          fixedID(0xAA),
		Kind:        "fact",
		Title:       "The API uses JWT",
		Body:        "tokens are signed with HS256",
		Metadata:    map[string]any{"confidence": float64(0.9)},
		Tags:        []string{"auth", "api"},
		Source:      types.Source{Agent: "kai", Session: "s1"},
		Importance:  0.7,
		AccessCount: 3,
		Embedding:   []float32{0.1, 0.2, 0.3},
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
		UpdatedAt:   time.Unix(1700000100, 0).UTC(),
		Deleted:     false,
		Namespace:   "",
	}
}

func TestNode_RoundTrip(t *testing.T) {
	n := goldenNode()
	data, err := EncodeNode(n)
	require.NoError(t, err)

	decoded, err := DecodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, n, decoded)
}

func TestNode_EncodeIsDeterministic(t *testing.T) {
	n := goldenNode()
	a, err := EncodeNode(n)
	require.NoError(t, err)
	b, err := EncodeNode(n)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// TestNode_GoldenBytes pins the exact on-wire layout. A deliberate field
// reorder or width change must fail this test immediately.
func TestNode_GoldenBytes(t *testing.T) {
	n := &types.Node{
		ID:         fixedID(0x01),
		Kind:       "k",
		Title:      "t",
		Body:       "b",
		Source:     types.Source{Agent: "a"},
		Importance: 0.5,
		CreatedAt:  time.Unix(0, 0).UTC(),
		UpdatedAt:  time.Unix(0, 0).UTC(),
	}
	data, err := EncodeNode(n)
	require.NoError(t, err)

	expected := []byte{}
	expected = append(expected, n.ID.Bytes()...)      // id (16)
	expected = append(expected, 0, 0, 0, 1, 'k')       // kind_len, kind
	expected = append(expected, 0, 0, 0, 1, 't')       // title_len, title
	expected = append(expected, 0, 0, 0, 1, 'b')       // body_len, body
	expected = append(expected, 0, 0, 0, 0)            // metadata_len (empty)
	expected = append(expected, 0, 0, 0, 0)            // tags_count
	expected = append(expected, 0, 0, 0, 1, 'a')       // source_agent
	expected = append(expected, 0)                     // source_session_opt: absent
	expected = append(expected, 0)                     // source_channel_opt: absent
	expected = append(expected, 0x3f, 0, 0, 0)          // importance: 0.5f32 big-endian
	expected = append(expected, 0, 0, 0, 0, 0, 0, 0, 0) // access_count: 0
	expected = append(expected, 0)                      // embedding_opt: absent
	expected = append(expected, 0, 0, 0, 0, 0, 0, 0, 0) // created_at nanos: 0
	expected = append(expected, 0, 0, 0, 0, 0, 0, 0, 0) // updated_at nanos: 0
	expected = append(expected, 0)                      // deleted: false
	expected = append(expected, 0)                      // namespace_opt: absent

	assert.Equal(t, expected, data)
}

func goldenEdge() *types.Edge {
	return &types.Edge{
		ID:         fixedID(0xBB),
		From:       fixedID(0x01),
		To:         fixedID(0x02),
		Relation:   "related_to",
		Weight:     0.82,
		Provenance: types.AutoSimilarityProvenance{Score: 0.82},
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
		UpdatedAt:  time.Unix(1700000100, 0).UTC(),
	}
}

func TestEdge_RoundTrip(t *testing.T) {
	e := goldenEdge()
	data, err := EncodeEdge(e)
	require.NoError(t, err)

	decoded, err := DecodeEdge(data)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestEdge_RoundTrip_AllProvenanceVariants(t *testing.T) {
	cases := []types.Provenance{
		types.ManualProvenance{By: "kai"},
		types.AutoSimilarityProvenance{Score: 0.91},
		types.AutoStructuralProvenance{Rule: "same_agent"},
		types.ImportedProvenance{Source: "obsidian"},
	}
	for _, p := range cases {
		e := goldenEdge()
		e.Provenance = p
		data, err := EncodeEdge(e)
		require.NoError(t, err)
		decoded, err := DecodeEdge(data)
		require.NoError(t, err)
		assert.Equal(t, p, decoded.Provenance)
	}
}

func TestDecodeNode_TruncatedBuffer(t *testing.T) {
	n := goldenNode()
	data, err := EncodeNode(n)
	require.NoError(t, err)

	_, err = DecodeNode(data[:len(data)-5])
	assert.Error(t, err)
	var codecErr *types.CodecError
	assert.ErrorAs(t, err, &codecErr)
}

func TestDecodeNode_InvalidLengthPrefix(t *testing.T) {
	n := goldenNode()
	data, err := EncodeNode(n)
	require.NoError(t, err)

	// Corrupt the kind length prefix (first 4 bytes after the 16-byte id)
	// to an implausibly large value.
	corrupt := append([]byte{}, data...)
	corrupt[16] = 0xff
	corrupt[17] = 0xff
	corrupt[18] = 0xff
	corrupt[19] = 0xff

	_, err = DecodeNode(corrupt)
	assert.Error(t, err)
}

func TestDecodeEdge_UnknownProvenanceTag(t *testing.T) {
	e := goldenEdge()
	data, err := EncodeEdge(e)
	require.NoError(t, err)

	// The provenance tag byte sits after id(16)+from(16)+to(16)+relation
	// length-prefix+bytes+weight(4).
	offset := 16 + 16 + 16 + 4 + len(e.Relation) + 4
	corrupt := append([]byte{}, data...)
	corrupt[offset] = 0xee

	_, err = DecodeEdge(corrupt)
	assert.Error(t, err)
}
