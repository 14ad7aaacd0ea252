package rag

import (
	"context"
	"fmt"
)

// Retriever answers similarity queries by combining an Embedder and a
// ChunkStore. It embeds the query at search time, fetches every chunk for
// the target document, and ranks them by cosine similarity — a linear scan,
// which is the intended retrieval strategy for this system.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store holds the document chunks to search.
	store ChunkStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever from the given Embedder and ChunkStore.
// defaultTopK sets the fallback result count when Search is called with topK=0.
func NewRetriever(embedder Embedder, store ChunkStore, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Search embeds the query and returns the topK most similar chunks of the
// document, descending by score. If topK is 0 the configured default is used.
func (r *Retriever) Search(ctx context.Context, query, docID string, topK int) ([]Candidate, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	chunks, err := r.store.GetAll(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("rag: loading chunks for %q failed: %w", docID, err)
	}

	candidates, err := Rank(embeddings[0], chunks, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: ranking failed: %w", err)
	}
	return candidates, nil
}
