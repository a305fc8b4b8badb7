package seclaitest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAPIKeyHeader is the header MockServer reads the API key from.
const DefaultAPIKeyHeader = "x-api-key"

// Script describes what the run stream endpoint sends for one agent.
type Script struct {
	// Status answers the handshake with a non-2xx code and Body instead of
	// a stream when set.
	Status int
	Body   string

	// ContentType overrides "text/event-stream".
	ContentType string

	// Frames are raw wire blocks, usually built with Event. They are
	// concatenated and written in ChunkSize pieces (all at once when 0),
	// flushing and sleeping Delay after each piece.
	Frames    []string
	ChunkSize int
	Delay     time.Duration

	// Hang keeps the connection open after the frames until the client
	// goes away.
	Hang bool

	// Abort kills the connection after the frames instead of ending the
	// response cleanly.
	Abort bool
}

// Event formats one SSE frame. Multi-line data is split into several
// data lines.
func Event(name, data string) string {
	var b strings.Builder
	if name != "" {
		b.WriteString("event: " + name + "\n")
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

// RecordedRequest is a request as the server saw it.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Upload is a file received by the upload endpoint.
type Upload struct {
	SourceID    string
	Title       string
	FileName    string
	ContentType string
	Data        []byte
}

type failure struct {
	status     int
	body       string
	retryAfter string
}

// MockServer is an in-memory fake of the Seclai API.
// It's useful for testing client code without network dependencies.
type MockServer struct {
	server *httptest.Server
	done   chan struct{}

	mu         sync.Mutex
	apiKey     string
	sources    []map[string]any
	runs       map[string][]map[string]any
	contents   map[string]string
	embeddings map[string][]map[string]any
	scripts    map[string]Script
	uploads    []Upload
	requests   []RecordedRequest
	failures   []failure
	nextRun    int
	closeOnce  sync.Once
}

// NewMockServer creates and starts a mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{
		done:       make(chan struct{}),
		runs:       make(map[string][]map[string]any),
		contents:   make(map[string]string),
		embeddings: make(map[string][]map[string]any),
		scripts:    make(map[string]Script),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sources/{$}", ms.handleListSources)
	mux.HandleFunc("POST /api/sources/{id}/upload", ms.handleUpload)
	mux.HandleFunc("POST /api/agents/{agent}/runs", ms.handleCreateRun)
	mux.HandleFunc("GET /api/agents/{agent}/runs", ms.handleListRuns)
	mux.HandleFunc("POST /api/agents/{agent}/runs/stream", ms.handleStream)
	mux.HandleFunc("GET /api/agents/{agent}/runs/{run}", ms.handleGetRun)
	mux.HandleFunc("DELETE /api/agents/{agent}/runs/{run}", ms.handleDeleteRun)
	mux.HandleFunc("GET /api/contents/{id}", ms.handleGetContent)
	mux.HandleFunc("DELETE /api/contents/{id}", ms.handleDeleteContent)
	mux.HandleFunc("GET /api/contents/{id}/embeddings", ms.handleListEmbeddings)

	ms.server = httptest.NewServer(ms.intercept(mux))
	return ms
}

// URL returns the base URL of the mock server.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// HTTPClient returns an HTTP client configured to use the mock server.
func (ms *MockServer) HTTPClient() *http.Client {
	return ms.server.Client()
}

// Close releases hanging streams and shuts down the server.
func (ms *MockServer) Close() {
	ms.closeOnce.Do(func() { close(ms.done) })
	ms.server.Close()
}

// RequireAPIKey makes every request without this key fail with 401.
func (ms *MockServer) RequireAPIKey(key string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.apiKey = key
}

// FailNext makes the next request fail with status and body. Calls queue.
// retryAfter, when not empty, is sent as the Retry-After header.
func (ms *MockServer) FailNext(status int, body, retryAfter string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failures = append(ms.failures, failure{status: status, body: body, retryAfter: retryAfter})
}

// AddSource adds a source returned by the listing.
func (ms *MockServer) AddSource(src map[string]any) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sources = append(ms.sources, src)
}

// AddRun adds an existing run for agentID.
func (ms *MockServer) AddRun(agentID string, run map[string]any) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.runs[agentID] = append(ms.runs[agentID], run)
}

// AddContent stores the text of a content version.
func (ms *MockServer) AddContent(id, text string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.contents[id] = text
}

// SetEmbeddings stores the embeddings of a content version.
func (ms *MockServer) SetEmbeddings(id string, embeddings []map[string]any) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.embeddings[id] = embeddings
}

// SetStream scripts the run stream for agentID.
func (ms *MockServer) SetStream(agentID string, s Script) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.scripts[agentID] = s
}

// Requests returns every request received so far.
func (ms *MockServer) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest(nil), ms.requests...)
}

// LastRequest returns the most recent request.
func (ms *MockServer) LastRequest() (RecordedRequest, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.requests) == 0 {
		return RecordedRequest{}, false
	}
	return ms.requests[len(ms.requests)-1], true
}

// Uploads returns every file received by the upload endpoint.
func (ms *MockServer) Uploads() []Upload {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]Upload(nil), ms.uploads...)
}

// Contents reports whether a content version still exists.
func (ms *MockServer) Contents(id string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.contents[id]
	return ok
}

// intercept records requests, checks the API key and plays queued failures.
func (ms *MockServer) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		ms.mu.Lock()
		ms.requests = append(ms.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		key := ms.apiKey
		var f *failure
		if len(ms.failures) > 0 {
			f = &ms.failures[0]
			ms.failures = ms.failures[1:]
		}
		ms.mu.Unlock()

		if key != "" && r.Header.Get(DefaultAPIKeyHeader) != key {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid api key"})
			return
		}
		if f != nil {
			if f.retryAfter != "" {
				w.Header().Set("Retry-After", f.retryAfter)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ms *MockServer) handleListSources(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	items := append([]map[string]any(nil), ms.sources...)
	ms.mu.Unlock()

	if account := r.URL.Query().Get("account_id"); account != "" {
		filtered := items[:0]
		for _, s := range items {
			if fmt.Sprint(s["account_id"]) == account {
				filtered = append(filtered, s)
			}
		}
		items = filtered
	}
	writePage(w, r, items)
}

func (ms *MockServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, "file", "field required")
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	up := Upload{
		SourceID:    r.PathValue("id"),
		Title:       r.FormValue("title"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	ms.mu.Lock()
	ms.uploads = append(ms.uploads, up)
	ms.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"content_version_id":                   uuid.NewString(),
		"source_connection_content_version_id": uuid.NewString(),
		"filename":                             up.FileName,
		"status":                               "pending",
	})
}

func (ms *MockServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input    string `json:"input"`
		Priority bool   `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "body", "invalid JSON")
		return
	}

	ms.mu.Lock()
	ms.nextRun++
	run := map[string]any{
		"run_id":      "run-" + strconv.Itoa(ms.nextRun),
		"status":      "queued",
		"input":       req.Input,
		"priority":    req.Priority,
		"attempts":    []any{},
		"error_count": 0,
	}
	agent := r.PathValue("agent")
	ms.runs[agent] = append(ms.runs[agent], run)
	ms.mu.Unlock()

	writeJSON(w, http.StatusOK, run)
}

func (ms *MockServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	items := append([]map[string]any(nil), ms.runs[r.PathValue("agent")]...)
	ms.mu.Unlock()
	writePage(w, r, items)
}

func (ms *MockServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	run := ms.findRun(r.PathValue("agent"), r.PathValue("run"))
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (ms *MockServer) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	run := ms.findRun(r.PathValue("agent"), r.PathValue("run"))
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "run not found"})
		return
	}
	run["status"] = "cancelled"
	writeJSON(w, http.StatusOK, run)
}

// findRun must be called with ms.mu held.
func (ms *MockServer) findRun(agent, id string) map[string]any {
	for _, run := range ms.runs[agent] {
		if run["run_id"] == id {
			return run
		}
	}
	return nil
}

func (ms *MockServer) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ms.mu.Lock()
	text, ok := ms.contents[id]
	ms.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "content not found"})
		return
	}

	start := queryInt(r, "start", 0)
	end := queryInt(r, "end", len(text))
	start = min(max(start, 0), len(text))
	end = min(max(end, start), len(text))

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                                   id,
		"source_connection_content_version_id": id,
		"text_content":                         text[start:end],
		"text_content_start":                   start,
		"text_content_end":                     end,
		"text_content_total_length":            len(text),
	})
}

func (ms *MockServer) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ms.mu.Lock()
	_, ok := ms.contents[id]
	delete(ms.contents, id)
	ms.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "content not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ms *MockServer) handleListEmbeddings(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	items, ok := ms.embeddings[r.PathValue("id")]
	items = append([]map[string]any(nil), items...)
	ms.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "content not found"})
		return
	}
	writePage(w, r, items)
}

// handleStream plays the agent's Script.
func (ms *MockServer) handleStream(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	script, ok := ms.scripts[r.PathValue("agent")]
	ms.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "agent not found"})
		return
	}

	if script.Status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(script.Status)
		io.WriteString(w, script.Body)
		return
	}

	contentType := script.ContentType
	if contentType == "" {
		contentType = "text/event-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	payload := strings.Join(script.Frames, "")
	size := script.ChunkSize
	if size <= 0 {
		size = len(payload)
	}
	for len(payload) > 0 {
		n := min(size, len(payload))
		if _, err := io.WriteString(w, payload[:n]); err != nil {
			return
		}
		payload = payload[n:]
		flush()

		if script.Delay > 0 {
			select {
			case <-time.After(script.Delay):
			case <-r.Context().Done():
				return
			case <-ms.done:
				return
			}
		}
	}

	switch {
	case script.Abort:
		panic(http.ErrAbortHandler)
	case script.Hang:
		select {
		case <-r.Context().Done():
		case <-ms.done:
		}
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

// writePage slices items by the page and limit query parameters.
func writePage(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	page := max(queryInt(r, "page", 1), 1)
	limit := queryInt(r, "limit", 20)
	if limit <= 0 {
		limit = 20
	}

	total := len(items)
	pages := (total + limit - 1) / limit
	from := min((page-1)*limit, total)
	to := min(from+limit, total)

	data := items[from:to]
	if data == nil {
		data = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"pagination": map[string]any{
			"page":     page,
			"limit":    limit,
			"pages":    pages,
			"total":    total,
			"has_next": page < pages,
			"has_prev": page > 1,
		},
	})
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{
			"loc":  []any{"body", field},
			"msg":  msg,
			"type": "value_error",
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// MockTransport is an http.RoundTripper that answers from a queue, one
// entry per round trip, and records what it was asked. It never touches
// the network.
type MockTransport struct {
	mu    sync.Mutex
	seen  []*http.Request
	queue []queued
}

type queued struct {
	resp *http.Response
	err  error
}

// NewMockTransport returns an empty transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// AddResponse queues resp, or err when resp is nil.
func (mt *MockTransport) AddResponse(resp *http.Response, err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.queue = append(mt.queue, queued{resp: resp, err: err})
}

// AddJSONResponse queues a JSON body with the given status and headers.
func (mt *MockTransport) AddJSONResponse(status int, body any, headers map[string]string) {
	data, _ := json.Marshal(body)
	mt.AddResponse(newResponse(status, "application/json", io.NopCloser(bytes.NewReader(data)), headers), nil)
}

// AddStreamResponse queues a 200 text/event-stream response reading from
// body. An io.Pipe lets a test decide when bytes arrive.
func (mt *MockTransport) AddStreamResponse(body io.ReadCloser) {
	mt.AddResponse(newResponse(http.StatusOK, "text/event-stream", body, nil), nil)
}

func newResponse(status int, contentType string, body io.ReadCloser, headers map[string]string) *http.Response {
	h := http.Header{"Content-Type": {contentType}}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{StatusCode: status, Header: h, Body: body}
}

// Requests returns the requests seen so far, oldest first.
func (mt *MockTransport) Requests() []*http.Request {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]*http.Request(nil), mt.seen...)
}

// RoundTrip pops the next queued answer.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.seen = append(mt.seen, req)
	if len(mt.queue) == 0 {
		return nil, errors.New("seclaitest: response queue is empty")
	}
	next := mt.queue[0]
	mt.queue = mt.queue[1:]
	if next.resp != nil {
		next.resp.Request = req
		return next.resp, nil
	}
	return nil, next.err
}
