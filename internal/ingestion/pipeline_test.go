package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/docqa/docqa-go/internal/chunker"
	"github.com/docqa/docqa-go/internal/store"
)

// countingEmbedder returns a fixed-dimension vector per text and can be told
// to fail from the nth call onward.
type countingEmbedder struct {
	calls  int
	failAt int // 1-based call number to start failing at; 0 = never
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls >= e.failAt {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, emb *countingEmbedder) (*Pipeline, *store.SQLiteStore) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ck, err := chunker.New(chunker.Config{})
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}
	p, err := New(ck, emb, st)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, st
}

func Test_IngestText(t *testing.T) {
	t.Parallel()
	p, st := newTestPipeline(t, &countingEmbedder{})
	ctx := context.Background()

	text := "First paragraph about llamas.\n\nSecond paragraph about alpacas."
	res, err := p.IngestText(ctx, "camelids", text)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.DocID != "camelids" || res.ChunksAdded != 2 {
		t.Errorf("result = %+v, want camelids with 2 chunks", res)
	}

	chunks, err := st.GetAll(ctx, "camelids")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("stored %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		want := fmt.Sprintf("camelids_chunk_%d", i)
		if c.ChunkID != want {
			t.Errorf("chunk %d id = %q, want %q", i, c.ChunkID, want)
		}
		if len(c.Embedding) != 3 {
			t.Errorf("chunk %d embedding has %d dims, want 3", i, len(c.Embedding))
		}
	}
}

func Test_IngestText_Appends(t *testing.T) {
	t.Parallel()
	p, st := newTestPipeline(t, &countingEmbedder{})
	ctx := context.Background()

	for range 2 {
		if _, err := p.IngestText(ctx, "doc1", "Same paragraph."); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	chunks, err := st.GetAll(ctx, "doc1")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("stored %d chunks after two ingests, want 2 (append semantics)", len(chunks))
	}

	// The second generation must not reuse the first generation's chunk ids.
	ids := map[string]bool{}
	for _, c := range chunks {
		ids[c.ChunkID] = true
	}
	for _, want := range []string{"doc1_chunk_0", "doc1_chunk_1"} {
		if !ids[want] {
			t.Errorf("missing chunk id %q, got %v", want, ids)
		}
	}
}

func Test_IngestText_PartialFailureKeepsEarlierChunks(t *testing.T) {
	t.Parallel()
	p, st := newTestPipeline(t, &countingEmbedder{failAt: 2})
	ctx := context.Background()

	text := "First paragraph.\n\nSecond paragraph."
	if _, err := p.IngestText(ctx, "doc1", text); err == nil {
		t.Fatal("want error when the embedder fails mid-run")
	}

	chunks, err := st.GetAll(ctx, "doc1")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("stored %d chunks, want the 1 embedded before the failure", len(chunks))
	}
	if chunks[0].ChunkID != "doc1_chunk_0" {
		t.Errorf("surviving chunk = %q", chunks[0].ChunkID)
	}
}

func Test_ReplaceText(t *testing.T) {
	t.Parallel()
	p, st := newTestPipeline(t, &countingEmbedder{})
	ctx := context.Background()

	if _, err := p.IngestText(ctx, "doc1", "Old paragraph one.\n\nOld paragraph two."); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	res, err := p.ReplaceText(ctx, "doc1", "New single paragraph.")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if res.ChunksAdded != 1 {
		t.Errorf("chunks added = %d, want 1", res.ChunksAdded)
	}

	chunks, err := st.GetAll(ctx, "doc1")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "New single paragraph." {
		t.Errorf("stored chunks = %+v, want only the replacement", chunks)
	}
}

func Test_ReplaceText_EmbedFailureLeavesOldGeneration(t *testing.T) {
	t.Parallel()
	emb := &countingEmbedder{}
	p, st := newTestPipeline(t, emb)
	ctx := context.Background()

	if _, err := p.IngestText(ctx, "doc1", "Original paragraph."); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	emb.failAt = emb.calls + 1
	if _, err := p.ReplaceText(ctx, "doc1", "Replacement paragraph."); err == nil {
		t.Fatal("want error when embedding fails during replace")
	}

	chunks, err := st.GetAll(ctx, "doc1")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "Original paragraph." {
		t.Errorf("previous generation should survive a failed replace, got %+v", chunks)
	}
}

func Test_IngestFile(t *testing.T) {
	t.Parallel()
	p, st := newTestPipeline(t, &countingEmbedder{})
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("A paragraph from a file."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	res, err := p.IngestFile(ctx, path, "", false)
	if err != nil {
		t.Fatalf("ingest file: %v", err)
	}
	if res.DocID != "notes" {
		t.Errorf("doc id = %q, want notes (derived from file name)", res.DocID)
	}
	chunks, err := st.GetAll(ctx, "notes")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "A paragraph from a file." {
		t.Errorf("stored chunks = %+v", chunks)
	}
}

func Test_DocIDFromPath(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want string
	}{
		{"notes.txt", "notes"},
		{"/tmp/reports/q3-summary.pdf", "q3-summary"},
		{"README", "README"},
		{"archive.tar.gz", "archive.tar"},
	}
	for _, tc := range cases {
		if got := DocIDFromPath(tc.path); got != tc.want {
			t.Errorf("DocIDFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
