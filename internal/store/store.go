// Package store provides a SQLite-backed chunk store for ingested documents.
// Each chunk row carries its embedding serialized as a JSON float array so
// the stored vector round-trips exactly. Writes are append-only: re-ingesting
// a document id adds a new generation of chunk ids alongside the old one
// unless the caller explicitly replaces the document.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/docqa/docqa-go/internal/rag"
)

// DefaultDBPath returns the default database location, ~/.docqa/docqa.db,
// creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: creating %s: %w", dir, err)
	}
	return filepath.Join(dir, "docqa.db"), nil
}

// DocumentInfo summarizes one ingested document.
type DocumentInfo struct {
	// DocID is the document identifier.
	DocID string `json:"doc_id"`
	// Chunks is the number of chunk rows stored for the document.
	Chunks int `json:"chunks"`
}

// SQLiteStore is a rag.ChunkStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a SQLiteStore at the given path. Use ":memory:"
// for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the chunks table if it does not already exist.
// It is idempotent and called on every ingestion.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id     TEXT NOT NULL,
    chunk_id   TEXT NOT NULL,
    text       TEXT NOT NULL,
    embedding  TEXT NOT NULL  -- JSON float array
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks (doc_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// Put appends one chunk record. Each call is an independent durable write —
// a failure partway through a multi-chunk ingestion leaves earlier chunks
// stored and visible to concurrent queries.
func (s *SQLiteStore) Put(ctx context.Context, c rag.Chunk) error {
	emb, err := json.Marshal(c.Embedding)
	if err != nil {
		return fmt.Errorf("store: encode embedding for %s: %w", c.ChunkID, err)
	}

	const q = `INSERT INTO chunks (doc_id, chunk_id, text, embedding) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, c.DocID, c.ChunkID, c.Text, string(emb)); err != nil {
		return fmt.Errorf("store: put %s: %w", c.ChunkID, err)
	}
	return nil
}

// GetAll returns every stored chunk for the doc id. Row order is unspecified;
// ranking imposes the order that matters.
func (s *SQLiteStore) GetAll(ctx context.Context, docID string) ([]rag.Chunk, error) {
	const q = `SELECT doc_id, chunk_id, text, embedding FROM chunks WHERE doc_id = ?`

	rows, err := s.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, fmt.Errorf("store: get all for %s: %w", docID, err)
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var c rag.Chunk
		var emb string
		if err := rows.Scan(&c.DocID, &c.ChunkID, &c.Text, &emb); err != nil {
			return nil, fmt.Errorf("store: get all scan: %w", err)
		}
		if err := json.Unmarshal([]byte(emb), &c.Embedding); err != nil {
			return nil, fmt.Errorf("store: decode embedding for %s: %w", c.ChunkID, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get all rows: %w", err)
	}
	return chunks, nil
}

// ReplaceDocument atomically removes all stored chunks for the doc id and
// inserts the given chunks in their place. This is the explicit alternative
// to the default append-only ingestion.
func (s *SQLiteStore) ReplaceDocument(ctx context.Context, docID string, chunks []rag.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("store: replace delete %s: %w", docID, err)
	}

	const q = `INSERT INTO chunks (doc_id, chunk_id, text, embedding) VALUES (?, ?, ?, ?)`
	for _, c := range chunks {
		emb, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("store: replace encode embedding for %s: %w", c.ChunkID, err)
		}
		if _, err := tx.ExecContext(ctx, q, c.DocID, c.ChunkID, c.Text, string(emb)); err != nil {
			return fmt.Errorf("store: replace insert %s: %w", c.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace commit: %w", err)
	}
	return nil
}

// Documents lists every ingested doc id with its chunk count, ordered by id.
func (s *SQLiteStore) Documents(ctx context.Context) ([]DocumentInfo, error) {
	const q = `SELECT doc_id, COUNT(*) FROM chunks GROUP BY doc_id ORDER BY doc_id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.DocID, &d.Chunks); err != nil {
			return nil, fmt.Errorf("store: documents scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: documents rows: %w", err)
	}
	return docs, nil
}

// Ping verifies that the database is reachable. Used by readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
