package service

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Embedder turns text into fixed-length vectors via the upstream embedding
// model and provides the similarity primitive used by the ranker.
type Embedder struct {
	client     AIClient
	dimensions int
}

// NewEmbedder creates a new embedder. dimensions is D fixed by the embedding
// model version; every returned vector is checked against it.
func NewEmbedder(client AIClient, dimensions int) *Embedder {
	return &Embedder{
		client:     client,
		dimensions: dimensions,
	}
}

// Dimensions returns the configured embedding dimension D
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns the embedding vector for a single text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts preserving order: output index i corresponds to
// input index i. A single failing item fails the whole batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("input %d: %w", i, ErrEmptyInput)
		}
	}

	vecs, err := e.client.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, &UpstreamError{
			Op:  "embeddings",
			Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs)),
		}
	}
	for i, vec := range vecs {
		if len(vec) != e.dimensions {
			return nil, &UpstreamError{
				Op:  "embeddings",
				Err: fmt.Errorf("embedding %d has dimension %d, model is configured for %d", i, len(vec), e.dimensions),
			}
		}
	}

	return vecs, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1,1]
// for non-degenerate inputs. An all-zero vector on either side yields 0 by
// definition rather than dividing by zero. Summation runs left to right in
// index order so identical inputs always produce the identical float.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
