package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa/docqa-go/internal/agent"
	"github.com/docqa/docqa-go/internal/ingestion"
	"github.com/docqa/docqa-go/internal/llm"
	"github.com/docqa/docqa-go/internal/store"
)

type fakeAsker struct {
	res      *agent.Result
	err      error
	question string
	docID    string
}

func (f *fakeAsker) Run(_ context.Context, question, docID string) (*agent.Result, error) {
	f.question = question
	f.docID = docID
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeIngester struct {
	res      *ingestion.Result
	err      error
	docID    string
	text     string
	replaced bool
}

func (f *fakeIngester) IngestText(_ context.Context, docID, text string) (*ingestion.Result, error) {
	f.docID, f.text = docID, text
	return f.res, f.err
}

func (f *fakeIngester) ReplaceText(_ context.Context, docID, text string) (*ingestion.Result, error) {
	f.docID, f.text, f.replaced = docID, text, true
	return f.res, f.err
}

type fakeLister struct {
	docs []store.DocumentInfo
	err  error
}

func (f *fakeLister) Documents(context.Context) ([]store.DocumentInfo, error) {
	return f.docs, f.err
}

// failingPinger always reports its dependency as down.
type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }
func (failingPinger) Name() string               { return "store" }

func newTestServer(t *testing.T, ask asker, ing ingester, lister documentLister, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
		cfg.RateBurst = 1000
	}
	if ask == nil {
		ask = &fakeAsker{res: &agent.Result{Answer: "ok"}}
	}
	if ing == nil {
		ing = &fakeIngester{res: &ingestion.Result{DocID: "doc1", ChunksAdded: 1}}
	}
	if lister == nil {
		lister = &fakeLister{}
	}
	s, err := New(ask, ing, lister, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func Test_HandleAsk(t *testing.T) {
	t.Parallel()
	ask := &fakeAsker{res: &agent.Result{Answer: "Llamas eat grass."}}
	s := newTestServer(t, ask, nil, nil, nil)

	w := doJSON(t, s, http.MethodPost, "/api/ask", `{"question": "What do llamas eat?", "doc_id": "camelids"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	var resp askResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Llamas eat grass." || resp.DocID != "camelids" {
		t.Errorf("response = %+v", resp)
	}
	if ask.question != "What do llamas eat?" || ask.docID != "camelids" {
		t.Errorf("asker saw question=%q doc=%q", ask.question, ask.docID)
	}
}

func Test_HandleAsk_DefaultDocID(t *testing.T) {
	t.Parallel()
	ask := &fakeAsker{res: &agent.Result{Answer: "ok"}}
	s := newTestServer(t, ask, nil, nil, nil)

	if w := doJSON(t, s, http.MethodPost, "/api/ask", `{"question": "q"}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ask.docID != "doc1" {
		t.Errorf("doc id = %q, want doc1", ask.docID)
	}
}

func Test_HandleAsk_BadRequests(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, nil)

	if w := doJSON(t, s, http.MethodPost, "/api/ask", `{"doc_id": "d"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing question: status = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/ask", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
}

func Test_HandleAsk_RoundLimit(t *testing.T) {
	t.Parallel()
	limitErr := &agent.RoundLimitError{
		Rounds:       4,
		Conversation: []llm.Message{llm.UserMessage("q")},
	}
	s := newTestServer(t, &fakeAsker{err: limitErr}, nil, nil, nil)

	w := doJSON(t, s, http.MethodPost, "/api/ask", `{"question": "q"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp struct {
		Error    string        `json:"error"`
		Messages []llm.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" || len(resp.Messages) != 1 {
		t.Errorf("response = %+v, want error with transcript", resp)
	}
}

func Test_HandleAsk_UpstreamError(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAsker{err: errors.New("model exploded")}, nil, nil, nil)

	w := doJSON(t, s, http.MethodPost, "/api/ask", `{"question": "q"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if strings.Contains(w.Body.String(), "model exploded") {
		t.Error("internal error detail leaked to client")
	}
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func Test_HandleUpload(t *testing.T) {
	t.Parallel()
	ing := &fakeIngester{res: &ingestion.Result{DocID: "notes", ChunksAdded: 2}}
	s := newTestServer(t, nil, ing, nil, nil)

	body, contentType := multipartUpload(t, "notes.txt", []byte("Some text."), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if ing.docID != "notes" || ing.text != "Some text." {
		t.Errorf("ingester saw doc=%q text=%q", ing.docID, ing.text)
	}
	if ing.replaced {
		t.Error("append upload should not call ReplaceText")
	}

	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocID != "notes" || resp.ChunksAdded != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func Test_HandleUpload_ReplaceAndDocID(t *testing.T) {
	t.Parallel()
	ing := &fakeIngester{res: &ingestion.Result{DocID: "custom", ChunksAdded: 1}}
	s := newTestServer(t, nil, ing, nil, nil)

	body, contentType := multipartUpload(t, "whatever.txt", []byte("text"),
		map[string]string{"doc_id": "custom", "replace": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !ing.replaced || ing.docID != "custom" {
		t.Errorf("replaced=%v doc=%q, want replace under custom id", ing.replaced, ing.docID)
	}
}

func Test_HandleUpload_Latin1Fallback(t *testing.T) {
	t.Parallel()
	ing := &fakeIngester{res: &ingestion.Result{DocID: "legacy", ChunksAdded: 1}}
	s := newTestServer(t, nil, ing, nil, nil)

	// "café" in Latin-1: é is the single byte 0xE9, invalid as UTF-8.
	body, contentType := multipartUpload(t, "legacy.txt", []byte{'c', 'a', 'f', 0xE9}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ing.text != "café" {
		t.Errorf("ingested text = %q, want café", ing.text)
	}
}

func Test_HandleUpload_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, nil)

	body, contentType := multipartUpload(t, "image.png", []byte{0x89, 0x50}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", w.Code)
	}
}

func Test_HandleDocuments(t *testing.T) {
	t.Parallel()
	lister := &fakeLister{docs: []store.DocumentInfo{
		{DocID: "a", Chunks: 3},
		{DocID: "b", Chunks: 1},
	}}
	s := newTestServer(t, nil, nil, lister, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp documentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Documents) != 2 || resp.Documents[0].DocID != "a" {
		t.Errorf("response = %+v", resp)
	}
}

func Test_HandleHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func Test_HandleReady_FailingDependency(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, &Config{Pingers: []Pinger{failingPinger{}}})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ready || len(resp.Checks) != 1 || resp.Checks[0].Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

func Test_Auth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, &Config{APIKey: "sekret"})

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question": "q"}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question": "q"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question": "q"}`))
	req.Header.Set("Authorization", "Bearer sekret")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}

	// Health stays open without a token.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health with auth enabled: status = %d, want 200", w.Code)
	}
}

func Test_RateLimit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, &Config{RateLimit: 0.001, RateBurst: 1})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question": "q"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, want)
		}
	}
}

func Test_Metrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, nil, nil, nil)

	// Generate one request so the http counters have samples.
	if w := doJSON(t, s, http.MethodPost, "/api/ask", `{"question": "q"}`); w.Code != http.StatusOK {
		t.Fatalf("ask status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	for _, metric := range []string{"docqa_ask_requests_total", "docqa_http_requests_total"} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}
