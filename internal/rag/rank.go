package rag

import (
	"fmt"
	"math"
	"sort"
)

// DimensionError reports a query/chunk embedding dimension mismatch.
// It is a format error: never retried, never silently coerced.
type DimensionError struct {
	// ChunkID identifies the chunk whose embedding did not match.
	ChunkID string
	// Query is the query vector dimension.
	Query int
	// Stored is the stored embedding dimension.
	Stored int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("rag: embedding dimension mismatch for chunk %s: query %d, stored %d",
		e.ChunkID, e.Query, e.Stored)
}

// Cosine returns the cosine similarity of a and b. If either vector has zero
// norm the similarity is defined as 0, guarding divide-by-zero. A dimension
// mismatch is an error — truncating to the shorter vector would silently
// miscompute.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Query: len(a), Stored: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank scores the query vector against every chunk and returns the topK best
// matches, descending by score. topK is clamped to non-negative: 0 yields an
// empty result, a value larger than the candidate count yields all candidates.
// The sort is stable on score only — the order of equal-score candidates is
// unspecified.
func Rank(query []float32, chunks []Chunk, topK int) ([]Candidate, error) {
	if topK < 0 {
		topK = 0
	}

	candidates := make([]Candidate, 0, len(chunks))
	for _, c := range chunks {
		score, err := Cosine(query, c.Embedding)
		if err != nil {
			if dimErr, ok := err.(*DimensionError); ok {
				dimErr.ChunkID = c.ChunkID
			}
			return nil, err
		}
		candidates = append(candidates, Candidate{
			ChunkID: c.ChunkID,
			Text:    c.Text,
			Score:   score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}
