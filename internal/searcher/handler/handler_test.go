package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
)

type recordingExecutor struct {
	mu      sync.Mutex
	queries []executor.Query
	err     error
}

func (r *recordingExecutor) Execute(ctx context.Context, q executor.Query) (executor.Result, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return executor.Search(q.Indexes, q.FileName, q.Terms...)
}

type recordingTracker struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingTracker) Track(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTracker) searchEvents() []analytics.SearchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []analytics.SearchEvent
	for _, e := range r.events {
		if se, ok := e.(analytics.SearchEvent); ok {
			out = append(out, se)
		}
	}
	return out
}

const payload = `{"index":{"a.json":{"the":[0,1],"cat":[0]}},"terms":"The, unicorn"}`

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSearchWithoutCache(t *testing.T) {
	exec := &recordingExecutor{}
	tracker := &recordingTracker{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(exec, nil, tracker, m)

	rec := post(h.Search, payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"a.json":{"the":[0,1],"unicorn":[]}}`, rec.Body.String())

	require.Len(t, exec.queries, 1)
	assert.Equal(t, parser.Strings("The", "unicorn"), exec.queries[0].Terms)

	events := tracker.searchEvents()
	require.Len(t, events, 1)
	assert.Equal(t, []string{"the", "unicorn"}, events[0].Terms)
	assert.Equal(t, "ok", events[0].Result)
	assert.Equal(t, 2, events[0].TotalHits)
	assert.False(t, events[0].CacheHit)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("ok")))
}

func TestSearchZeroResult(t *testing.T) {
	tracker := &recordingTracker{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(&recordingExecutor{}, nil, tracker, m)

	rec := post(h.Search, `{"index":{"a.json":{"the":[0]}},"terms":"unicorn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, "zero_result", tracker.searchEvents()[0].Result)
}

func TestSearchFailuresAreTracked(t *testing.T) {
	exec := &recordingExecutor{}
	tracker := &recordingTracker{}
	h := New(exec, nil, tracker, nil)

	rec := post(h.Search, `{"index":{"a.json":{}},"terms":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var msg string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, apperrors.MsgTermsEmpty, msg)

	assert.Empty(t, exec.queries)
	events := tracker.searchEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "terms_empty", events[0].Result)
}

func TestSearchExecutorError(t *testing.T) {
	h := New(&recordingExecutor{err: errors.New("boom")}, nil, nil, nil)
	rec := post(h.Search, payload)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.MsgInternal)
}

func TestSearchCachedCollapsesRepeats(t *testing.T) {
	exec := &recordingExecutor{}
	tracker := &recordingTracker{}
	queryCache, err := cache.New(cache.Options{LocalSize: 8}, nil, nil)
	require.NoError(t, err)
	h := New(exec, queryCache, tracker, nil)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, post(h.Search, payload).Code)
	}
	assert.Len(t, exec.queries, 1)

	events := tracker.searchEvents()
	require.Len(t, events, 3)
	assert.False(t, events[0].CacheHit)
	assert.True(t, events[2].CacheHit)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	h := New(&recordingExecutor{}, nil, nil, nil)

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/cache/invalidate", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())
}
