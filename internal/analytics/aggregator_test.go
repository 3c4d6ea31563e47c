package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/kafka"
)

func TestDecode(t *testing.T) {
	event, err := Decode([]byte(`{"type":"search","terms":["cat"],"total_hits":2,"result":"ok"}`))
	require.NoError(t, err)
	search, ok := event.(*SearchEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"cat"}, search.Terms)

	event, err = Decode([]byte(`{"type":"index_create","file_name":"a.json","documents":3,"result":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, 3, event.(*IndexEvent).Documents)

	_, err = Decode([]byte(`{"type":"unknown"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestAggregatorTotals(t *testing.T) {
	agg := NewAggregator(nil)
	ctx := context.Background()

	publish := func(v any) {
		require.NoError(t, agg.Publish(ctx, kafka.Event{Value: v}))
	}
	publish(IndexEvent{Type: EventIndexCreate, FileName: "a.json", Result: "ok", Documents: 2})
	publish(IndexEvent{Type: EventIndexCreate, FileName: "b.txt", Result: "name_invalid"})
	publish(SearchEvent{Type: EventSearch, Terms: []string{"the", "cat"}, TotalHits: 3, Result: "ok", LatencyMs: 2})
	publish(SearchEvent{Type: EventSearch, Terms: []string{"the"}, TotalHits: 2, Result: "ok", CacheHit: true, LatencyMs: 1})
	publish(SearchEvent{Type: EventSearch, Terms: []string{"unicorn"}, Result: "zero_result", LatencyMs: 3})
	publish(SearchEvent{Type: EventSearch, Result: "terms_empty"})

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.IndexesCreated)
	assert.Equal(t, int64(1), stats.IndexesRejected)
	assert.Equal(t, int64(2), stats.DocsIndexed)
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.FailedSearches)
	assert.Equal(t, int64(1), stats.ZeroResultSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, map[string]int64{"name_invalid": 1, "terms_empty": 1}, stats.FailuresByReason)
	assert.InDelta(t, 2.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 2.0, stats.P50LatencyMs)
	require.NotEmpty(t, stats.TopTerms)
	assert.Equal(t, TermCount{Term: "the", Count: 2}, stats.TopTerms[0])
	assert.Equal(t, []TermCount{{Term: "unicorn", Count: 1}}, stats.ZeroResultTerms)
}

func TestHandleEventSkipsGarbage(t *testing.T) {
	agg := NewAggregator(nil)
	handle := HandleEvent(agg)
	assert.NoError(t, handle(context.Background(), nil, []byte("garbage")))

	value, err := json.Marshal(SearchEvent{Type: EventSearch, Terms: []string{"x"}, TotalHits: 1, Result: "ok"})
	require.NoError(t, err)
	assert.NoError(t, handle(context.Background(), []byte("a.json"), value))
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestLatencyRingIsBounded(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.addLatency(float64(i))
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, float64(maxLatencySamples), agg.latencies[0])
}

func TestRestore(t *testing.T) {
	agg := NewAggregator(nil)
	earlier := time.Now().Add(-time.Hour).UTC()
	agg.Restore(AggregatedStats{
		IndexesCreated:   5,
		TotalSearches:    7,
		FailuresByReason: map[string]int64{"terms_empty": 2},
		Since:            earlier,
	})
	require.NoError(t, agg.Publish(context.Background(), kafka.Event{
		Value: SearchEvent{Type: EventSearch, Result: "terms_empty"},
	}))

	stats := agg.Stats()
	assert.Equal(t, int64(5), stats.IndexesCreated)
	assert.Equal(t, int64(8), stats.TotalSearches)
	assert.Equal(t, int64(3), stats.FailuresByReason["terms_empty"])
	assert.True(t, stats.Since.Equal(earlier))
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator(nil)
	require.NoError(t, agg.Publish(context.Background(), kafka.Event{
		Value: IndexEvent{Type: EventIndexCreate, Result: "ok", Documents: 4},
	}))

	rec := httptest.NewRecorder()
	NewHandler(agg, nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(4), stats.DocsIndexed)
}

func TestStartWithoutConsumerWaitsForContext(t *testing.T) {
	agg := NewAggregator(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agg.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
