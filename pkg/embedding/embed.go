// Package embedding implements the embedding service (spec.md §4.3): a
// synchronous, CPU-bound, deterministic text-to-vector function.
//
// The production teacher dependency is an HTTP-backed Ollama/OpenAI
// embedder; that network boundary is explicitly out of scope here (spec.md
// §1 treats external model-serving as an external collaborator). What
// remains in scope is the interface contract and a real, deterministic
// local implementation any Ollama/OpenAI client can be swapped in behind
// without touching pkg/vectorindex or pkg/autolinker.
package embedding

import "context"

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}
