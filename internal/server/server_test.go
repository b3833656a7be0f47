package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pipetakeoff/internal/analysis"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/export"
	"github.com/joseph-ayodele/pipetakeoff/internal/llm"
	"github.com/joseph-ayodele/pipetakeoff/internal/session"
)

const samplePDF = "%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIngestor struct {
	store *session.Store
	err   error

	mu       sync.Mutex
	gotName  string
	gotBytes []byte
}

func (f *fakeIngestor) Ingest(_ context.Context, doc []byte, fileName string) (entity.UploadResult, error) {
	f.mu.Lock()
	f.gotName, f.gotBytes = fileName, doc
	f.mu.Unlock()
	if f.err != nil {
		return entity.UploadResult{}, f.err
	}
	id := f.store.Create([][]byte{[]byte("png-a"), []byte("png-b")}, fileName)
	return entity.UploadResult{SessionID: id, FileName: fileName, PageCount: 2}, nil
}

type fakeAnalyzer struct {
	out entity.ExtractionOutcome
	err error

	// When set, Analyze signals entered and waits for hold to close.
	entered chan struct{}
	hold    chan struct{}
}

func (f *fakeAnalyzer) Analyze(context.Context, analysis.Request) (entity.ExtractionOutcome, error) {
	if f.hold != nil {
		close(f.entered)
		<-f.hold
	}
	return f.out, f.err
}

type fixture struct {
	srv      *Server
	handler  http.Handler
	store    *session.Store
	ingestor *fakeIngestor
	analyzer *fakeAnalyzer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := session.New(session.WithLogger(quietLogger()))
	f := &fixture{
		store:    store,
		ingestor: &fakeIngestor{store: store},
		analyzer: &fakeAnalyzer{out: entity.ExtractionOutcome{Materials: []entity.MaterialRecord{}}},
	}
	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"http://localhost:5173"}
	}
	f.srv = New(Deps{
		Ingest:   f.ingestor,
		Sessions: store,
		Analysis: f.analyzer,
		Export:   export.NewService(quietLogger()),
	}, opts, quietLogger())
	f.srv.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	f.handler = f.srv.Handler()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestUploadCreatesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec := f.do(uploadRequest(t, "file", "Site Plan.PDF", []byte(samplePDF)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got entity.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.SessionID)
	assert.Equal(t, "Site Plan.PDF", got.FileName)
	assert.Equal(t, 2, got.PageCount)
	assert.Equal(t, []byte(samplePDF), f.ingestor.gotBytes)

	info, err := f.store.Info(got.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
}

func TestUploadRejections(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		req         func(t *testing.T) *http.Request
		ingestErr   error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "wrong extension",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "file", "plan.png", []byte(samplePDF)) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Only PDF files are supported",
		},
		{
			name:        "missing file field",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "document", "plan.pdf", []byte(samplePDF)) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "No file provided",
		},
		{
			name:        "empty file",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "file", "plan.pdf", nil) },
			wantStatus:  http.StatusBadRequest,
			wantMessage: "No file provided",
		},
		{
			name: "content is not a pdf",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "plan.pdf", []byte("hello, plain text"))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "not a PDF",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "plan.pdf", append([]byte(samplePDF), bytes.Repeat([]byte("x"), 1<<20)...))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "File size exceeds 1MB limit",
		},
		{
			name:        "renderer rejects the document",
			req:         func(t *testing.T) *http.Request { return uploadRequest(t, "file", "plan.pdf", []byte(samplePDF)) },
			ingestErr:   fmt.Errorf("%w: pdfinfo: syntax error", common.ErrIngestionFailed),
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "document ingestion failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{MaxUploadMB: 1})
			f.ingestor.err = tc.ingestErr

			rec := f.do(tc.req(t))
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tc.wantMessage)
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestPageImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	id := f.store.Create([][]byte{[]byte("png-a"), []byte("png-b")}, "plan.pdf")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/upload/"+id+"/page/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-b", rec.Body.String())

	testCases := []struct {
		path string
		want int
	}{
		{"/api/upload/" + id + "/page/0", http.StatusBadRequest},
		{"/api/upload/" + id + "/page/3", http.StatusBadRequest},
		{"/api/upload/" + id + "/page/two", http.StatusBadRequest},
		{"/api/upload/unknown/page/1", http.StatusNotFound},
	}
	for _, tc := range testCases {
		rec := f.do(httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
	}
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	id := f.store.Create([][]byte{[]byte("png-a")}, "plan.pdf")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []entity.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].SessionID)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pageCount":1`)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysisStatusMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"session expired", fmt.Errorf("session %q: %w", "x", common.ErrSessionNotFound), http.StatusNotFound, "session not found"},
		{"page out of range", fmt.Errorf("page 9 of 2: %w", common.ErrPageOutOfRange), http.StatusBadRequest, "page number out of range"},
		{"missing key", common.InvalidInputError("apiKey is required"), http.StatusBadRequest, "apiKey is required"},
		{"provider rejected key", llm.StatusError("openai", 401, []byte(`{"error":"Incorrect API key"}`)), http.StatusUnauthorized, "Incorrect API key"},
		{"provider quota", llm.StatusError("openai", 429, []byte("rate limited")), http.StatusTooManyRequests, "rate limited"},
		{"provider outage", llm.StatusError("gemini", 503, []byte("overloaded")), http.StatusBadGateway, "overloaded"},
		{"transport", llm.TransportError("openai", context.DeadlineExceeded), http.StatusBadGateway, "deadline exceeded"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.analyzer.err = tc.err

			rec := f.do(jsonRequest(t, http.MethodPost, "/api/analysis", analysis.Request{SessionID: "s", PageNumber: 1}))
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tc.wantMessage)
		})
	}
}

func TestAnalysisReturnsOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	notes := "scale 1:50"
	f.analyzer.out = entity.ExtractionOutcome{
		Materials:    []entity.MaterialRecord{{Category: "Pipe", Unit: "LF", Confidence: "High"}},
		DrawingNotes: &notes,
	}

	rec := f.do(jsonRequest(t, http.MethodPost, "/api/analysis", analysis.Request{SessionID: "s", PageNumber: 1}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"drawingNotes":"scale 1:50"`)
	assert.Contains(t, rec.Body.String(), `"category":"Pipe"`)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportDownload(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	body := map[string]any{"materials": []map[string]any{
		{"category": "Pipe", "description": `4" PVC`, "size": `4"`, "material": "PVC", "quantity": 150, "unit": "LF", "confidence": "High"},
	}}

	rec := f.do(jsonRequest(t, http.MethodPost, "/api/export/csv", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="takeoff-20260301-090000.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), `"4"" PVC"`)

	rec = f.do(jsonRequest(t, http.MethodPost, "/api/export/excel", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.Equal(t, "PK", rec.Body.String()[:2])

	rec = f.do(jsonRequest(t, http.MethodPost, "/api/export/csv", map[string]any{"materials": []any{}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(jsonRequest(t, http.MethodPost, "/api/export/pdf", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualMaterial(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec := f.do(jsonRequest(t, http.MethodPost, "/api/materials", map[string]any{
		"category": "Valve", "description": "6\" gate valve", "quantity": 2,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got entity.MaterialRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsManualEntry)
	assert.Equal(t, "High", got.Confidence)
	assert.Equal(t, "EA", got.Unit)
	assert.Equal(t, "2", got.Quantity.String())

	rec = f.do(jsonRequest(t, http.MethodPost, "/api/materials", map[string]any{"description": "no category"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "category")
}

func TestQuantityOutOfRangeRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		path string
		body string
	}{
		{"manual huge exponent", "/api/materials", `{"category":"Pipe","description":"4\" PVC","quantity":1e50000000}`},
		{"manual tiny exponent", "/api/materials", `{"category":"Pipe","description":"4\" PVC","quantity":1e-40}`},
		{"manual too many digits", "/api/materials", `{"category":"Pipe","description":"4\" PVC","quantity":1234567890123456789012345678901234567890}`},
		{"export huge exponent", "/api/export/csv", `{"materials":[{"category":"Pipe","quantity":1},{"category":"Pipe","quantity":1e50000000}]}`},
		{"export parquet huge exponent", "/api/export/parquet", `{"materials":[{"category":"Pipe","quantity":"1e50000000"}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")

			rec := f.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec), "quantity is out of range")
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, 2026, got.Timestamp.Year())
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{AllowedOrigins: []string{"https://takeoff.example"}})

	t.Run("request id and security headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := f.do(req)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))

		rec = f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Len(t, rec.Header().Get(requestIDHeader), 36)
	})

	t.Run("error bodies carry the request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
		req.Header.Set(requestIDHeader, "trace-9")
		rec := f.do(req)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "trace-9", body.RequestID)
	})

	t.Run("cors allow list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/analysis", nil)
		req.Header.Set("Origin", "https://takeoff.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rec := f.do(req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://takeoff.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

		req = httptest.NewRequest(http.MethodOptions, "/api/analysis", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec = f.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec = f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServeRunsBeforeShutdownAheadOfDrain(t *testing.T) {
	t.Parallel()

	hookRan := make(chan struct{})
	f := newFixture(t, Options{})
	f.analyzer.entered = make(chan struct{})
	f.analyzer.hold = make(chan struct{})
	// The in-flight request only finishes once the hook has run, so a hook
	// that fired after draining would leave Shutdown waiting.
	f.srv.beforeShutdown = func() {
		close(hookRan)
		close(f.analyzer.hold)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, lis) }()

	status := make(chan int, 1)
	go func() {
		body := strings.NewReader(`{"sessionId":"s","pageNumber":1}`)
		resp, err := http.Post("http://"+lis.Addr().String()+"/api/analysis", "application/json", body)
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	select {
	case <-f.analyzer.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the analyzer")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-hookRan:
	default:
		t.Fatal("BeforeShutdown was not called")
	}
	assert.Equal(t, http.StatusOK, <-status)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
