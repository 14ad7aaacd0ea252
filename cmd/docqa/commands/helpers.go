package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/chunker"
	"github.com/docqa/docqa-go/internal/embedder"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/llm"
	"github.com/docqa/docqa-go/internal/rag"
	"github.com/docqa/docqa-go/internal/store"
)

// openStore opens the SQLite chunk store at DOCQA_DB, falling back to the
// default location under the user's home directory.
func openStore() (*store.SQLiteStore, error) {
	path := os.Getenv("DOCQA_DB")
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// newChunker builds a chunker from the CHUNK_MAX_CHARS and CHUNK_OVERLAP
// environment variables, using the package defaults when unset.
func newChunker() (*chunker.Chunker, error) {
	cfg := chunker.Config{
		MaxChars: envInt("CHUNK_MAX_CHARS", 0),
		Overlap:  envInt("CHUNK_OVERLAP", 0),
	}
	ck, err := chunker.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}
	return ck, nil
}

// buildPipeline wires the ingestion pipeline from environment configuration.
// The returned store must be closed by the caller.
func buildPipeline(log *slog.Logger) (*ingestion.Pipeline, *store.SQLiteStore, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	ck, err := newChunker()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	embedder.Validate(log)
	emb, err := embedder.NewFromEnv()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	p, err := ingestion.New(ck, emb, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, st, nil
}

// buildAgent wires the QA agent from environment configuration.
// The returned store must be closed by the caller.
func buildAgent(log *slog.Logger) (*agent.Agent, *store.SQLiteStore, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	embedder.Validate(log)
	emb, err := embedder.NewFromEnv()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	retriever, err := rag.NewRetriever(emb, st, 0)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	model, err := llm.NewFromEnv()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	var opts []agent.Option
	if rounds := envInt("AGENT_MAX_ROUNDS", 0); rounds > 0 {
		opts = append(opts, agent.WithMaxRounds(rounds))
	}
	a, err := agent.New(model, retriever, opts...)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return a, st, nil
}

// envInt reads an integer environment variable, returning fallback when the
// variable is unset or malformed.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
