// Package server implements the HTTP server that exposes document ingestion
// and question answering as a REST API.
// The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/logging"
)

// defaultDocID is used when a request does not name a document.
const defaultDocID = "doc1"

// defaultMaxUploadBytes caps document uploads at 32 MiB.
const defaultMaxUploadBytes = 32 << 20

// New constructs a Server from the provided services and config.
func New(ask asker, ing ingester, lister documentLister, cfg *Config) (*Server, error) {
	if ask == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if ing == nil {
		return nil, fmt.Errorf("server: ingester must not be nil")
	}
	if lister == nil {
		return nil, fmt.Errorf("server: document lister must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full multi-round QA loop.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("server: API key not configured — authentication is disabled")
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	gatherer := prometheus.DefaultGatherer
	if cfg.Registry != nil {
		reg = cfg.Registry
		gatherer = cfg.Registry
	}

	s := &Server{
		asker:    ask,
		ingester: ing,
		lister:   lister,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	protect := func(h http.HandlerFunc) http.Handler {
		return rl.middleware(authMiddleware(cfg.APIKey, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", protect(s.handleAsk))
	mux.Handle("POST /api/upload", protect(s.handleUpload))
	mux.Handle("GET /api/documents", protect(s.handleDocuments))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.metrics.instrument(corsMiddleware(mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("docqa server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. It runs the QA loop and returns the final
// answer, or the conversation transcript when the loop ran out of rounds.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}
	if req.DocID == "" {
		req.DocID = defaultDocID
	}

	res, err := s.asker.Run(r.Context(), req.Question, req.DocID)
	if err != nil {
		var limitErr *agent.RoundLimitError
		if errors.As(err, &limitErr) {
			s.observeAsk("round_limit", start)
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:        limitErr.Error(),
				Conversation: limitErr.Conversation,
			})
			return
		}
		log.Error("ask failed", slog.Any("error", err))
		s.observeAsk("error", start)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "question answering failed"})
		return
	}

	s.observeAsk("ok", start)
	writeJSON(w, http.StatusOK, askResponse{Answer: res.Answer, DocID: req.DocID})
}

// handleUpload handles POST /api/upload. It accepts a multipart form with a
// "file" part plus optional "doc_id" and "replace" fields, extracts the text,
// and ingests it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file part is required"})
		return
	}
	defer file.Close()

	docID := r.FormValue("doc_id")
	if docID == "" {
		docID = ingestion.DocIDFromPath(header.Filename)
	}
	replace := r.FormValue("replace") == "true"

	text, err := extractUpload(file, header.Filename)
	if err != nil {
		var unsupported *extract.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: unsupported.Error()})
			return
		}
		log.Error("upload extraction failed", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not extract text from upload"})
		return
	}

	ingest := s.ingester.IngestText
	if replace {
		ingest = s.ingester.ReplaceText
	}
	res, err := ingest(r.Context(), docID, text)
	if err != nil {
		log.Error("upload ingestion failed", slog.String("doc_id", docID), slog.Any("error", err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "ingestion failed"})
		return
	}

	s.metrics.chunksIngested.Add(float64(res.ChunksAdded))
	writeJSON(w, http.StatusOK, uploadResponse{DocID: res.DocID, ChunksAdded: res.ChunksAdded})
}

// handleDocuments handles GET /api/documents.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.lister.Documents(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("listing documents failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "listing documents failed"})
		return
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: docs})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) observeAsk(outcome string, start time.Time) {
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// extractUpload turns an uploaded file into text. Plain text and Markdown
// are decoded in memory with a Latin-1 fallback for non-UTF-8 content;
// binary formats are spooled to a temp file so the extractor can read them.
func extractUpload(file io.Reader, filename string) (string, error) {
	switch ext := filepath.Ext(filename); ext {
	case ".txt", ".md", "":
		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("server: reading upload: %w", err)
		}
		return decodeText(data), nil
	default:
		tmp, err := os.CreateTemp("", "docqa-upload-*"+ext)
		if err != nil {
			return "", fmt.Errorf("server: spooling upload: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close()
			return "", fmt.Errorf("server: spooling upload: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return "", fmt.Errorf("server: spooling upload: %w", err)
		}
		return extract.File(tmp.Name())
	}
}

// decodeText interprets data as UTF-8 when valid, falling back to Latin-1
// (one rune per byte) so legacy text files never fail ingestion.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// writeJSON encodes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
