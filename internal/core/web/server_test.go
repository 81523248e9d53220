package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seckatie/snapmark/internal/core"
	"github.com/seckatie/snapmark/internal/core/assets"
	"github.com/seckatie/snapmark/internal/core/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

// fakeCapturer writes a screenshot without a browser.
type fakeCapturer struct {
	files *assets.Store
	store *db.DB
}

func (c *fakeCapturer) Capture(_ context.Context, id int64, _ string) core.StageResult {
	name, err := c.files.WriteScreenshot(id, pngBytes)
	if err == nil {
		err = c.store.UpdateScreenshot(id, name)
	}
	if err != nil {
		return core.StageResult{Stage: core.StageCapture, Outcome: core.OutcomeFailed, Err: err}
	}
	return core.StageResult{Stage: core.StageCapture, Outcome: core.OutcomeOK}
}

// spyScraper records the URLs it was asked to scrape.
type spyScraper struct {
	mu   sync.Mutex
	urls []string
}

func (s *spyScraper) Scrape(_ context.Context, _ int64, url string) core.StageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	return core.StageResult{Stage: core.StageScrape, Outcome: core.OutcomeSkipped, Err: core.ErrNoCredentials}
}

func (s *spyScraper) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

type testEnv struct {
	server   *Server
	db       *db.DB
	files    *assets.Store
	enricher *core.Enricher
	scraper  *spyScraper
}

// newTestEnv wires the API to an in-memory store, temp asset dirs and a
// browserless enrichment pipeline.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.NewSQLiteDB(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.Migrate())

	root := t.TempDir()
	files, err := assets.New(assets.Config{
		ScreenshotsDir: filepath.Join(root, "screenshots"),
		ImagesDir:      filepath.Join(root, "linkedin-images"),
	})
	require.NoError(t, err)

	scraper := &spyScraper{}
	enricher := core.NewEnricher(&fakeCapturer{files: files, store: database}, scraper, nil, zap.NewNop())
	core.RegisterListeners(database, enricher, files, zap.NewNop())

	return &testEnv{
		server:   NewServer(database, files, zap.NewNop()),
		db:       database,
		files:    files,
		enricher: enricher,
		scraper:  scraper,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.enricher.Wait(ctx))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestBookmarkLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/bookmarks", `{"url":"https://example.com/x"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "https://example.com/x", created["url"])
	assert.Equal(t, "", created["title"])
	assert.Contains(t, created, "screenshot")
	assert.Nil(t, created["screenshot"])
	assert.Contains(t, created, "enrichment_data")
	assert.Nil(t, created["enrichment_data"])
	assert.NotEmpty(t, created["created_at"])

	env.wait(t)

	rec = env.do(t, http.MethodGet, "/api/bookmarks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "1.png", list[0]["screenshot"])
	assert.Nil(t, list[0]["enrichment_data"])

	rec = env.do(t, http.MethodGet, "/api/screenshots/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = env.do(t, http.MethodDelete, "/api/bookmarks/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = env.do(t, http.MethodGet, "/api/screenshots/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = env.do(t, http.MethodDelete, "/api/bookmarks/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScraperOnlyRunsForLinkedIn(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/bookmarks", `{"url":"https://example.com/x"}`)
	env.do(t, http.MethodPost, "/api/bookmarks", `{"url":"https://www.linkedin.com/posts/abc"}`)
	env.wait(t)

	assert.Equal(t, []string{"https://www.linkedin.com/posts/abc"}, env.scraper.URLs())

	b, err := env.db.GetBookmark(2)
	require.NoError(t, err)
	require.NotNil(t, b.Screenshot)
	assert.Equal(t, "2.png", *b.Screenshot)
	assert.Nil(t, b.EnrichmentData, "skipped scrape leaves enrichment_data null")
}

func TestListIsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for i := range 4 {
		rec := env.do(t, http.MethodPost, "/api/bookmarks", `{"url":"https://example.com/`+string(rune('a'+i))+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	env.wait(t)

	rec := env.do(t, http.MethodGet, "/api/bookmarks", "")
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1]["id"].(float64), list[i]["id"].(float64))
	}

	rec = env.do(t, http.MethodGet, "/api/bookmarks?limit=2", "")
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/bookmarks?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/bookmarks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestCreateBookmarkValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"url":`},
		{"missing url", `{"title":"x"}`},
		{"blank url", `{"url":"   "}`},
		{"unsupported scheme", `{"url":"ftp://example.com/file"}`},
		{"no host", `{"url":"https:///path"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/bookmarks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}

	env.wait(t)
	list, err := env.db.ListBookmarks(0)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected requests never reach the store")
}

func TestCreateBookmarkRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t)

	huge := strings.Repeat("a", maxBodyBytes+1)
	bodies := []struct {
		contentType string
		body        string
	}{
		{"application/json", `{"url":"https://example.com/` + huge + `"}`},
		{"application/x-www-form-urlencoded", "url=https%3A%2F%2Fexample.com%2F" + huge},
	}
	for _, b := range bodies {
		t.Run(b.contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader(b.body))
			req.Header.Set("Content-Type", b.contentType)
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	env.wait(t)
	list, err := env.db.ListBookmarks(0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateBookmarkFromForm(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", strings.NewReader("url=https%3A%2F%2Fexample.com%2Fform&title=Form"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "https://example.com/form", created["url"])
	assert.Equal(t, "Form", created["title"])
	env.wait(t)
}

func TestGetBookmark(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/bookmarks", `{"url":"https://example.com/x","title":"X"}`)
	env.wait(t)

	rec := env.do(t, http.MethodGet, "/api/bookmarks/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "X", decode[map[string]any](t, rec)["title"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/bookmarks/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/bookmarks/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/bookmarks/0", "").Code)
}

func TestServeImage(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/bookmarks", `{"url":"https://www.linkedin.com/posts/abc"}`)
	env.wait(t)

	_, err := env.files.WriteImage(1, 0, []byte("jpeg-bytes"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/linkedin-images/1/img_0.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/linkedin-images/1/img_1.jpg", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/linkedin-images/2/img_0.jpg", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/linkedin-images/1/..%2F..%2Fscreenshots%2F1.png", "").Code)

	rec = env.do(t, http.MethodDelete, "/api/bookmarks/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/linkedin-images/1/img_0.jpg", "").Code)
}

func TestHealthzMetricsAndCORS(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	req := httptest.NewRequest(http.MethodOptions, "/api/bookmarks", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/nope", "").Code)
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
