package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimensions matches the teacher's Ollama/OpenAI default model
// dimension, so a real model can be swapped in without resizing the
// vector index.
const DefaultDimensions = 384

// LocalEmbedder is a deterministic, CPU-resident embedder: tokens are
// hashed into a fixed-width vector (the "hashing trick"), each occurrence
// adding ±1 to its bucket depending on a second hash bit, then the vector
// is L2-normalized. Same text always produces the same vector; no model
// weights, no network calls.
type LocalEmbedder struct {
	dimensions int
}

// NewLocal creates a LocalEmbedder with the given vector width.
func NewLocal(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &LocalEmbedder{dimensions: dimensions}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Embed implements Embedder.
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dimensions)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(l.dimensions))
		if (sum>>63)&1 == 1 {
			vec[bucket] += 1
		} else {
			vec[bucket] -= 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// EmbedBatch implements Embedder.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions implements Embedder.
func (l *LocalEmbedder) Dimensions() int { return l.dimensions }

// Model implements Embedder.
func (l *LocalEmbedder) Model() string { return "local-hashing-v1" }

var _ Embedder = (*LocalEmbedder)(nil)
