package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of a document upload. Defaults to 32 MiB.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, the default
	// registry is used. Tests inject a fresh registry to stay hermetic.
	Registry *prometheus.Registry
}

// asker answers a question against an ingested document.
// *agent.Agent satisfies it; tests inject a fake.
type asker interface {
	Run(ctx context.Context, question, docID string) (*agent.Result, error)
}

// ingester turns uploaded document text into stored chunks.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	IngestText(ctx context.Context, docID, text string) (*ingestion.Result, error)
	ReplaceText(ctx context.Context, docID, text string) (*ingestion.Result, error)
}

// documentLister enumerates stored documents for GET /api/documents.
// *store.SQLiteStore satisfies it; tests inject a fake.
type documentLister interface {
	Documents(ctx context.Context) ([]store.DocumentInfo, error)
}

// Server is the HTTP server that exposes document ingestion and QA.
type Server struct {
	// asker runs the QA loop for /api/ask.
	asker asker
	// ingester handles document uploads for /api/upload.
	ingester ingester
	// lister enumerates documents for /api/documents.
	lister documentLister
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// DocID selects the document to answer against. Defaults to "doc1".
	DocID string `json:"doc_id"`
}

// askResponse is the JSON response for a successful POST /api/ask.
type askResponse struct {
	// Answer is the agent's final grounded answer.
	Answer string `json:"answer"`
	// DocID echoes the document the answer was grounded in.
	DocID string `json:"doc_id"`
}

// errorResponse is the JSON body for failed requests. Conversation is only
// populated when the QA loop ran out of rounds, so callers can inspect the
// transcript.
type errorResponse struct {
	Error        string `json:"error"`
	Conversation any    `json:"messages,omitempty"`
}

// uploadResponse is the JSON response for POST /api/upload.
type uploadResponse struct {
	// DocID is the identifier the document was stored under.
	DocID string `json:"doc_id"`
	// ChunksAdded is the number of chunks embedded and persisted.
	ChunksAdded int `json:"chunks_added"`
}

// documentsResponse is the JSON response for GET /api/documents.
type documentsResponse struct {
	// Documents lists each stored document and its chunk count.
	Documents []store.DocumentInfo `json:"documents"`
}
