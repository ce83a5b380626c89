package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipgrid/dataset"
	"github.com/meigma/zipgrid/index"
	"github.com/meigma/zipgrid/internal/testutil"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *testutil.MemFetcher) {
	t.Helper()
	fetcher := testutil.NewMemFetcher(testutil.SmallDataset(t))
	return New(index.New(fetcher), opts...), fetcher
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["ready"])
}

func TestResolve(t *testing.T) {
	t.Parallel()
	s, fetcher := newTestServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/resolve/94110")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resolveResponse{Code: "94110", I: 12, J: 40, Found: true}, decode[resolveResponse](t, rec))

	rec = get(t, h, "/api/resolve/94199")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resolveResponse{Code: "94199", I: -1, J: -1}, decode[resolveResponse](t, rec))
	assert.Equal(t, 1, fetcher.Count(dataset.ShardName("941")))

	for _, bad := range []string{"9411", "941100", "9411x"} {
		rec = get(t, h, "/api/resolve/"+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestResolveFetchFailure(t *testing.T) {
	t.Parallel()
	s, fetcher := newTestServer(t)
	fetcher.Fail(dataset.ShardName("941"), errors.New("upstream down"))

	rec := get(t, s.Handler(), "/api/resolve/94110")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestClientDisconnect(t *testing.T) {
	t.Parallel()

	gate := testutil.NewGatedFetcher(testutil.NewMemFetcher(testutil.SmallDataset(t)))
	t.Cleanup(gate.Release)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := New(index.New(gate), WithLogger(logger)).Handler()

	for _, path := range []string{"/api/resolve/94110", "/api/suggest/94"} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, statusClientClosed, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
	}
	assert.NotContains(t, logs.String(), "failed")
}

func TestSuggest(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/suggest/94")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[suggestResponse](t, rec)
	assert.Equal(t, "94", body.Partial)
	require.Len(t, body.Matches, 3)
	assert.Equal(t, "94110", body.Matches[0].Code)
	assert.Equal(t, [][2]int{{12, 40}, {12, 41}, {13, 40}}, body.Coords)

	rec = get(t, h, "/api/suggest/77")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, bad := range []string{"94110", "9a"} {
		rec = get(t, h, "/api/suggest/"+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestDataAndStaticFiles(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	root := bytes.Repeat([]byte(`{"9":{"Z":[],"C":[]}}`), 200)
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "z"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "z", "root.json"), root, 0o644))

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>zipgrid</html>"), 0o644))

	s, _ := newTestServer(t, WithDataDir(dataDir), WithStaticDir(staticDir))
	h := s.Handler()

	rec := get(t, h, "/data/z/root.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, root, rec.Body.Bytes())

	rec = get(t, h, "/data/z/root.json", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), len(root))

	rec = get(t, h, "/data/z/missing.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "zipgrid")
}

func TestCORS(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, WithCORSOrigins("https://maps.example.com"))
	h := s.Handler()

	rec := get(t, h, "/healthz", "Origin", "https://maps.example.com")
	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/healthz", "Origin", "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0", time.Second) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
