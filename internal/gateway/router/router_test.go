package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	gwmw "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/store"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/executor"
	searchhandler "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/handler"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
)

type testServer struct {
	handler    http.Handler
	metrics    *metrics.Metrics
	aggregator *analytics.Aggregator
	collector  *analytics.Collector
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testServer {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	agg := analytics.NewAggregator(nil)
	collector := analytics.NewCollector(agg, 128)
	collector.Start(context.Background())
	t.Cleanup(collector.Close)

	engine := indexer.NewEngine(store.New(), m, collector)
	queryCache, err := cache.New(cache.Options{LocalSize: 16}, nil, m)
	require.NoError(t, err)

	checker := health.NewChecker()
	checker.Register("index_store", engine.Ready)

	h := New(Handlers{
		Ingestion: ingesthandler.New(engine),
		Search:    searchhandler.New(executor.New(m), queryCache, collector, m),
		Analytics: analytics.NewHandler(agg, nil),
		Health:    checker,
	}, Options{
		Metrics:      m,
		Limiter:      limiter,
		CORS:         gwmw.DefaultCORSConfig(nil),
		Timeout:      5 * time.Second,
		MaxBodyBytes: 1 << 20,
	})
	return &testServer{handler: h, metrics: m, aggregator: agg, collector: collector}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var msg string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg), rec.Body.String())
	return msg
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]map[string][]int {
	t.Helper()
	var out map[string]map[string][]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

var twoBooks = []map[string]string{
	{"title": "T1", "text": "the cat sat"},
	{"title": "T2", "text": "the dog ran"},
}

func TestCreateThenSearch(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/create", map[string]any{"fileName": "a.json", "fileContent": twoBooks})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	created := decodeObject(t, rec)
	assert.Equal(t, []int{0, 1}, created["a.json"]["the"])
	assert.Equal(t, []int{0}, created["a.json"]["cat"])
	assert.Equal(t, []int{1}, created["a.json"]["dog"])

	rec = s.do(t, http.MethodPost, "/api/search", map[string]any{"index": created, "fileName": "a.json", "terms": "the"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]map[string][]int{"a.json": {"the": {0, 1}}}, decodeObject(t, rec))

	rec = s.do(t, http.MethodPost, "/api/search", map[string]any{"index": created, "fileName": "a.json", "terms": "the cat"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]map[string][]int{"a.json": {"the cat": {0}}}, decodeObject(t, rec))
}

func TestSearchTermsForms(t *testing.T) {
	s := newTestServer(t, nil)
	index := map[string]any{
		"a.json": map[string][]int{"the": {0, 1}, "cat": {0}},
		"b.json": map[string][]int{"cat": {2}},
	}

	rec := s.do(t, http.MethodPost, "/api/v0/search", map[string]any{"index": index, "terms": "cat, unicorn"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]map[string][]int{
		"a.json": {"cat": {0}, "unicorn": {}},
		"b.json": {"cat": {2}, "unicorn": {}},
	}, decodeObject(t, rec))

	rec = s.do(t, http.MethodPost, "/api/search", map[string]any{"index": index, "fileName": "a.json", "terms": []any{"THE", []any{"cat"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]map[string][]int{"a.json": {"the": {0, 1}, "cat": {0}}}, decodeObject(t, rec))
}

func TestFailureLiterals(t *testing.T) {
	s := newTestServer(t, nil)
	validIndex := map[string]any{"a.json": map[string][]int{"the": {0}}}

	cases := []struct {
		name string
		path string
		body any
		code int
		want string
	}{
		{"bad name", "/api/create", map[string]any{"fileName": "bad.txt", "fileContent": twoBooks}, 400, "File name Invalid"},
		{"missing name", "/api/create", map[string]any{"fileContent": twoBooks}, 400, "File name Invalid"},
		{"not an array", "/api/create", map[string]any{"fileName": "a.json", "fileContent": map[string]string{"title": "x"}}, 400, "Invalid!"},
		{"empty array", "/api/create", map[string]any{"fileName": "a.json", "fileContent": []any{}}, 400, "Empty!"},
		{"malformed", "/api/create", map[string]any{"fileName": "a.json", "fileContent": []any{map[string]string{"title": "x"}}}, 400, "Malformed!"},
		{"empty index", "/api/search", map[string]any{"index": map[string]any{}, "terms": "the"}, 400, "Invalid index Object"},
		{"array index", "/api/search", map[string]any{"index": []any{1}, "terms": "the"}, 400, "Invalid index Object"},
		{"missing index", "/api/search", map[string]any{"terms": "the"}, 400, "Invalid index Object"},
		{"no terms", "/api/search", map[string]any{"index": validIndex}, 400, "Terms cannot be empty"},
		{"empty terms", "/api/search", map[string]any{"index": validIndex, "terms": ""}, 400, "Terms cannot be empty"},
		{"nested empty terms", "/api/search", map[string]any{"index": validIndex, "terms": []any{[]any{}}}, 400, "Terms cannot be empty"},
		{"bad json", "/api/search", `{"index":`, 400, apperrors.MsgBadRequest},
		{"numeric terms", "/api/search", map[string]any{"index": validIndex, "terms": 5}, 400, apperrors.MsgBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.want, decodeMessage(t, rec))
		})
	}
}

func TestSearchByNameIgnoresOtherCollections(t *testing.T) {
	s := newTestServer(t, nil)
	index := map[string]any{
		"a.json": map[string][]int{"cat": {0}},
		"b.json": []int{1, 2},
	}

	rec := s.do(t, http.MethodPost, "/api/search", map[string]any{"index": index, "fileName": "a.json", "terms": "cat"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]map[string][]int{"a.json": {"cat": {0}}}, decodeObject(t, rec))

	rec = s.do(t, http.MethodPost, "/api/search", map[string]any{"index": index, "terms": "cat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid index Object", decodeMessage(t, rec))
}

func TestRequestKeysAreCaseSensitive(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/create", map[string]any{"FILENAME": "a.json", "fileContent": twoBooks})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.MsgNameInvalid, decodeMessage(t, rec))
}

func TestOversizedBody(t *testing.T) {
	s := newTestServer(t, nil)
	text := strings.Repeat("word ", 300_000)
	rec := s.do(t, http.MethodPost, "/api/create", map[string]any{
		"fileName":    "big.json",
		"fileContent": []map[string]string{{"title": "big", "text": text}},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apperrors.MsgBodyTooLarge, decodeMessage(t, rec))
}

func TestEmptyBodyIsEmptyRequest(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/create", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.MsgNameInvalid, decodeMessage(t, rec))
}

func TestReadIndexes(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v0/create", map[string]any{"fileName": "a.json", "fileContent": twoBooks}).Code)

	rec := s.do(t, http.MethodGet, "/api/indexes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeObject(t, rec), "a.json")

	rec = s.do(t, http.MethodGet, "/api/indexes/a.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var idx map[string][]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&idx))
	assert.Equal(t, []int{1}, idx["ran"])

	rec = s.do(t, http.MethodGet, "/api/indexes/missing.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.MsgIndexNotFound, decodeMessage(t, rec))
}

func TestSearchIsCached(t *testing.T) {
	s := newTestServer(t, nil)
	body := map[string]any{"index": map[string]any{"a.json": map[string][]int{"the": {0}}}, "terms": "the"}

	rec := s.do(t, http.MethodPost, "/api/search", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))
	for i := 0; i < 2; i++ {
		rec = s.do(t, http.MethodPost, "/api/search", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "local", rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.CacheHitsTotal.WithLabelValues("local")))

	rec = s.do(t, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.LocalHits)
	assert.Equal(t, 1, stats.LocalEntries)

	rec = s.do(t, http.MethodPost, "/api/cache/invalidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalidated")
}

func TestAnalyticsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/create", map[string]any{"fileName": "a.json", "fileContent": twoBooks}).Code)
	s.do(t, http.MethodPost, "/api/create", map[string]any{"fileName": "a.txt", "fileContent": twoBooks})
	s.collector.Close()

	rec := s.do(t, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats analytics.AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.IndexesCreated)
	assert.Equal(t, int64(1), stats.IndexesRejected)
	assert.Equal(t, int64(2), stats.DocsIndexed)
}

func TestHealthAndFallbacks(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", nil).Code)

	rec := s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/create", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDAndCORSHeaders(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/create", strings.NewReader(`{}`))
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitedRoutes(t *testing.T) {
	limiter := ratelimit.New(2, time.Hour)
	defer limiter.Close()
	s := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/indexes", nil).Code)
	}
	rec := s.do(t, http.MethodGet, "/api/indexes", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperrors.MsgRateLimited, decodeMessage(t, rec))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil).Code)
}
