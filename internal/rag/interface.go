// Package rag defines the core types and interfaces for retrieval-augmented
// question answering: chunk storage, embedding, and similarity ranking.
// Concrete implementations (SQLite store, HTTP embedders) satisfy these
// interfaces so the agent layer never depends on a specific backend.
package rag

import (
	"context"
)

// Chunk is a stored passage of a document. Chunks are created during
// ingestion and immutable thereafter.
type Chunk struct {
	// DocID groups chunks belonging to one ingested document.
	DocID string

	// ChunkID is unique within a document, derived from the doc id and the
	// chunk's ordinal position ("<doc_id>_chunk_<n>").
	ChunkID string

	// Text is the passage's literal content (non-empty, trimmed).
	Text string

	// Embedding is the fixed-dimension vector representation of Text.
	// The dimension is set by the embedding provider and must match the
	// dimension of any query vector compared against it.
	Embedding []float32
}

// Candidate is a ranking result returned to the model as tool output.
type Candidate struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// Text is the matched passage content.
	Text string `json:"text"`

	// Score is the cosine similarity between the query and the chunk
	// embedding, in [-1, 1].
	Score float64 `json:"score"`
}

// ChunkStore persists and retrieves document chunks.
// Implementations must be safe to call from multiple goroutines.
type ChunkStore interface {
	// EnsureSchema idempotently creates the persistent structure for chunks.
	// Safe to call on every ingestion.
	EnsureSchema(ctx context.Context) error

	// Put appends one chunk record. Append-only: re-ingesting a doc id adds
	// a new generation of chunk ids rather than replacing prior ones.
	Put(ctx context.Context, c Chunk) error

	// GetAll returns every stored chunk for the doc id, in unspecified order.
	GetAll(ctx context.Context, docID string) ([]Chunk, error)
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
