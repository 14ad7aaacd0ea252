package rag

import (
	"errors"
	"math"
	"testing"
)

func Test_Cosine_Identity(t *testing.T) {
	t.Parallel()
	v := []float32{0.3, -0.5, 0.8}
	got, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Cosine(v, v) = %v, want 1", got)
	}
}

func Test_Cosine_Symmetric(t *testing.T) {
	t.Parallel()
	a := []float32{1, 2, 3}
	b := []float32{-4, 0.5, 2}
	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("cosine(a,b): %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("cosine(b,a): %v", err)
	}
	if ab != ba {
		t.Errorf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func Test_Cosine_ZeroVector(t *testing.T) {
	t.Parallel()
	got, err := Cosine([]float32{1, 2}, []float32{0, 0})
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if got != 0 {
		t.Errorf("Cosine(v, zero) = %v, want 0", got)
	}
}

func Test_Cosine_Orthogonal(t *testing.T) {
	t.Parallel()
	got, err := Cosine([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("cosine: %v", err)
	}
	if math.Abs(got) > 1e-9 {
		t.Errorf("Cosine(e1, e2) = %v, want 0", got)
	}
}

func Test_Cosine_DimensionMismatch(t *testing.T) {
	t.Parallel()
	_, err := Cosine([]float32{1, 2, 3}, []float32{1, 2})
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("want DimensionError, got %v", err)
	}
	if dimErr.Query != 3 || dimErr.Stored != 2 {
		t.Errorf("DimensionError = %+v, want query 3, stored 2", dimErr)
	}
}

// rankFixture returns three chunks with orthogonal-ish embeddings so the
// ranking order against the query [1, 0, 0] is deterministic: a > b > c.
func rankFixture() []Chunk {
	return []Chunk{
		{ChunkID: "c", Text: "third", Embedding: []float32{0, 0, 1}},
		{ChunkID: "a", Text: "first", Embedding: []float32{1, 0, 0}},
		{ChunkID: "b", Text: "second", Embedding: []float32{1, 1, 0}},
	}
}

func Test_Rank_Order(t *testing.T) {
	t.Parallel()
	got, err := Rank([]float32{1, 0, 0}, rankFixture(), 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 candidates, got %d", len(got))
	}
	if got[0].ChunkID != "a" || got[1].ChunkID != "b" || got[2].ChunkID != "c" {
		t.Errorf("order = %s, %s, %s; want a, b, c", got[0].ChunkID, got[1].ChunkID, got[2].ChunkID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
}

func Test_Rank_TopKClamping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		topK int
		want int
	}{
		{"zero yields empty", 0, 0},
		{"negative clamped to zero", -5, 0},
		{"fewer than candidates", 2, 2},
		{"more than candidates yields all", 10, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Rank([]float32{1, 0, 0}, rankFixture(), tc.topK)
			if err != nil {
				t.Fatalf("rank: %v", err)
			}
			if len(got) != tc.want {
				t.Errorf("len = %d, want %d", len(got), tc.want)
			}
		})
	}
}

func Test_Rank_DimensionMismatchFailsFast(t *testing.T) {
	t.Parallel()
	chunks := []Chunk{
		{ChunkID: "ok", Embedding: []float32{1, 0}},
		{ChunkID: "bad", Embedding: []float32{1, 0, 0}},
	}
	_, err := Rank([]float32{1, 0}, chunks, 2)
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("want DimensionError, got %v", err)
	}
	if dimErr.ChunkID != "bad" {
		t.Errorf("ChunkID = %q, want %q", dimErr.ChunkID, "bad")
	}
}

func Test_Rank_EmptyCandidates(t *testing.T) {
	t.Parallel()
	got, err := Rank([]float32{1, 0}, nil, 5)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty result, got %d", len(got))
	}
}
