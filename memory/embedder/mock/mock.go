// Package mock provides a deterministic embedder for tests: no
// network, no model files, stable vectors for stable inputs.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder generates pseudo-random unit vectors seeded by a hash of
// the input text. Identical texts always embed identically; distinct
// texts are effectively orthogonal, which is enough for store and
// pipeline tests.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder producing vectors of the given size.
func New(dimensions int) *Embedder {
	return &Embedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from the text hash.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, e.dimensions)
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
