package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validNode() *Node {
	return &Node{
		ID:     NewRecordID(),
		Kind:   "fact",
		Title:  "The API uses JWT",
		Body:   "tokens are signed with HS256",
		Tags:   []string{"auth", "api"},
		Source: Source{Agent: "kai"},
	}
}

func TestNode_Validate_OK(t *testing.T) {
	n := validNode()
	assert.NoError(t, n.Validate())
}

func TestNode_Validate_RejectsUppercaseKind(t *testing.T) {
	n := validNode()
	n.Kind = "Fact"
	assert.Error(t, n.Validate())
}

func TestNode_Validate_RejectsOverlongTitle(t *testing.T) {
	n := validNode()
	long := make([]rune, 257)
	for i := range long {
		long[i] = 'a'
	}
	n.Title = string(long)
	assert.Error(t, n.Validate())
}

func TestNode_Validate_RejectsMissingAgent(t *testing.T) {
	n := validNode()
	n.Source.Agent = ""
	assert.Error(t, n.Validate())
}

func TestNode_Validate_RejectsTooManyTags(t *testing.T) {
	n := validNode()
	tags := make([]string, 33)
	for i := range tags {
		tags[i] = "tag"
	}
	n.Tags = tags
	assert.Error(t, n.Validate())
}

func TestNode_EmbeddingInput(t *testing.T) {
	n := validNode()
	n.Tags = []string{"auth", "api"}
	got := n.EmbeddingInput()
	assert.Equal(t, "fact: The API uses JWT\ntokens are signed with HS256\ntags: auth, api", got)
}

func TestNode_SharedTagCount(t *testing.T) {
	a := validNode()
	a.Tags = []string{"auth", "api", "security"}
	b := validNode()
	b.Tags = []string{"api", "security", "other"}
	assert.Equal(t, 2, a.SharedTagCount(b))
}

func TestNode_ClampImportance(t *testing.T) {
	n := validNode()
	n.Importance = 1.5
	n.ClampImportance()
	assert.Equal(t, float32(1.0), n.Importance)

	n.Importance = -0.5
	n.ClampImportance()
	assert.Equal(t, float32(0.0), n.Importance)
}
