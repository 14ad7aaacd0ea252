// Package ingestion implements the document ingestion pipeline.
// It extracts text from a source file, chunks the content, embeds each
// chunk, and persists the results into the chunk store. The pipeline is
// invoked by the `docqa ingest` CLI command and the upload API endpoint.
package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docqa/docqa-go/internal/chunker"
	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// Store is the persistence surface the pipeline writes to. It extends the
// read path used by retrieval with document replacement.
type Store interface {
	rag.ChunkStore
	ReplaceDocument(ctx context.Context, docID string, chunks []rag.Chunk) error
}

// Result summarizes a completed ingestion run.
type Result struct {
	// DocID is the document the chunks were stored under.
	DocID string `json:"doc_id"`

	// ChunksAdded is the number of chunks embedded and persisted.
	ChunksAdded int `json:"chunks_added"`
}

// Pipeline orchestrates the extract → chunk → embed → store flow.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder rag.Embedder
	store    Store
}

// New constructs a Pipeline. All dependencies are required.
func New(ck *chunker.Chunker, embedder rag.Embedder, store Store) (*Pipeline, error) {
	if ck == nil {
		return nil, fmt.Errorf("ingestion: chunker must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	return &Pipeline{chunker: ck, embedder: embedder, store: store}, nil
}

// IngestText chunks, embeds, and stores text under docID, appending to any
// chunks already stored for that document. Chunk ordinals continue past the
// existing generation, keeping chunk ids unique across re-ingestions. Chunks
// are embedded and written one at a time so a mid-run failure leaves the
// chunks processed so far durable.
func (p *Pipeline) IngestText(ctx context.Context, docID, text string) (*Result, error) {
	log := logging.FromContext(ctx)

	if err := p.store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ingestion: preparing store: %w", err)
	}

	// Continue the ordinal past any chunks already stored for this document
	// so a re-ingestion appends a disjoint generation of chunk ids instead
	// of reusing the earlier ones.
	existing, err := p.store.GetAll(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading existing chunks of %q: %w", docID, err)
	}
	base := len(existing)

	pieces := p.chunker.Split(text)
	log.Info("ingesting document", "doc_id", docID, "chunks", len(pieces))

	for i, piece := range pieces {
		chunk, err := p.embedChunk(ctx, docID, base+i, piece)
		if err != nil {
			return nil, err
		}
		if err := p.store.Put(ctx, chunk); err != nil {
			return nil, fmt.Errorf("ingestion: storing chunk %d of %q: %w", base+i, docID, err)
		}
	}

	return &Result{DocID: docID, ChunksAdded: len(pieces)}, nil
}

// ReplaceText atomically replaces all stored chunks of docID with the chunks
// of text. All embeddings are computed before the store transaction begins,
// so an embedding failure leaves the previous generation intact.
func (p *Pipeline) ReplaceText(ctx context.Context, docID, text string) (*Result, error) {
	log := logging.FromContext(ctx)

	if err := p.store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ingestion: preparing store: %w", err)
	}

	pieces := p.chunker.Split(text)
	log.Info("replacing document", "doc_id", docID, "chunks", len(pieces))

	chunks := make([]rag.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunk, err := p.embedChunk(ctx, docID, i, piece)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	if err := p.store.ReplaceDocument(ctx, docID, chunks); err != nil {
		return nil, fmt.Errorf("ingestion: replacing document %q: %w", docID, err)
	}
	return &Result{DocID: docID, ChunksAdded: len(chunks)}, nil
}

// IngestFile extracts text from path and ingests it. When docID is empty it
// is derived from the file name with the extension stripped. replace selects
// ReplaceText over IngestText.
func (p *Pipeline) IngestFile(ctx context.Context, path, docID string, replace bool) (*Result, error) {
	if docID == "" {
		docID = DocIDFromPath(path)
	}
	text, err := extract.File(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: extracting %q: %w", path, err)
	}
	if replace {
		return p.ReplaceText(ctx, docID, text)
	}
	return p.IngestText(ctx, docID, text)
}

// DocIDFromPath derives a document identifier from a file path: the base
// name with its extension removed.
func DocIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *Pipeline) embedChunk(ctx context.Context, docID string, i int, text string) (rag.Chunk, error) {
	vecs, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return rag.Chunk{}, fmt.Errorf("ingestion: embedding chunk %d of %q: %w", i, docID, err)
	}
	if len(vecs) != 1 {
		return rag.Chunk{}, fmt.Errorf("ingestion: embedder returned %d vectors for one chunk", len(vecs))
	}
	return rag.Chunk{
		DocID:     docID,
		ChunkID:   fmt.Sprintf("%s_chunk_%d", docID, i),
		Text:      text,
		Embedding: vecs[0],
	}, nil
}
