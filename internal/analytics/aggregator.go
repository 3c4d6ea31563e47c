package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	IndexesCreated     int64            `json:"indexes_created"`
	IndexesRejected    int64            `json:"indexes_rejected"`
	DocsIndexed        int64            `json:"docs_indexed"`
	TotalSearches      int64            `json:"total_searches"`
	FailedSearches     int64            `json:"failed_searches"`
	ZeroResultSearches int64            `json:"zero_result_searches"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	FailuresByReason   map[string]int64 `json:"failures_by_reason"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       float64          `json:"p50_latency_ms"`
	P95LatencyMs       float64          `json:"p95_latency_ms"`
	P99LatencyMs       float64          `json:"p99_latency_ms"`
	TopTerms           []TermCount      `json:"top_terms"`
	ZeroResultTerms    []TermCount      `json:"zero_result_terms"`
	QueriesPerMinute   float64          `json:"queries_per_minute"`
	Since              time.Time        `json:"since"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator folds index and search events into running totals. It can be
// fed by a Kafka consumer through HandleEvent or directly as a Publisher.
type Aggregator struct {
	mu               sync.RWMutex
	stats            AggregatedStats
	latencies        []float64
	nextLatency      int
	termCounts       map[string]int64
	zeroResultTerms  map[string]int64
	failuresByReason map[string]int64
	startTime        time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// delivered in-process.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	now := time.Now()
	return &Aggregator{
		latencies:        make([]float64, 0, 1024),
		termCounts:       make(map[string]int64),
		zeroResultTerms:  make(map[string]int64),
		failuresByReason: make(map[string]int64),
		startTime:        now,
		stats:            AggregatedStats{Since: now.UTC()},
		consumer:         consumer,
		logger:           slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the Kafka consumer Start reads from.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

// Start consumes events until ctx is cancelled. Without a consumer it waits
// for ctx and returns nil.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		<-ctx.Done()
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent adapts agg to a Kafka message handler. Undecodable messages
// are logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := agg.record(value); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		}
		return nil
	}
}

// Publish records event directly, letting the Collector feed the Aggregator
// when Kafka is not configured.
func (a *Aggregator) Publish(ctx context.Context, event kafka.Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return fmt.Errorf("marshaling event value: %w", err)
	}
	return a.record(value)
}

func (a *Aggregator) record(value []byte) error {
	event, err := Decode(value)
	if err != nil {
		return err
	}
	switch e := event.(type) {
	case *IndexEvent:
		a.recordIndexEvent(e)
	case *SearchEvent:
		a.recordSearchEvent(e)
	}
	return nil
}

func (a *Aggregator) recordIndexEvent(event *IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event.Result != "ok" {
		a.stats.IndexesRejected++
		a.failuresByReason[event.Result]++
		return
	}
	a.stats.IndexesCreated++
	a.stats.DocsIndexed += int64(event.Documents)
}

func (a *Aggregator) recordSearchEvent(event *SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalSearches++
	if event.Result != "ok" && event.Result != "zero_result" {
		a.stats.FailedSearches++
		a.failuresByReason[event.Result]++
		return
	}
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	a.addLatency(event.LatencyMs)
	for _, term := range event.Terms {
		a.termCounts[term]++
	}
	if event.TotalHits == 0 {
		a.stats.ZeroResultSearches++
		for _, term := range event.Terms {
			a.zeroResultTerms[term]++
		}
	}
}

// addLatency keeps the most recent maxLatencySamples values in a ring.
func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.nextLatency] = ms
	a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
}

// Restore seeds the counters from a previously saved snapshot. Latency
// samples and term counts start fresh.
func (a *Aggregator) Restore(prev AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.IndexesCreated += prev.IndexesCreated
	a.stats.IndexesRejected += prev.IndexesRejected
	a.stats.DocsIndexed += prev.DocsIndexed
	a.stats.TotalSearches += prev.TotalSearches
	a.stats.FailedSearches += prev.FailedSearches
	a.stats.ZeroResultSearches += prev.ZeroResultSearches
	a.stats.CacheHits += prev.CacheHits
	a.stats.CacheMisses += prev.CacheMisses
	for reason, n := range prev.FailuresByReason {
		a.failuresByReason[reason] += n
	}
	if !prev.Since.IsZero() && prev.Since.Before(a.stats.Since) {
		a.stats.Since = prev.Since
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	stats.FailuresByReason = make(map[string]int64, len(a.failuresByReason))
	for reason, n := range a.failuresByReason {
		stats.FailuresByReason[reason] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopTerms = topN(a.termCounts, 10)
	stats.ZeroResultTerms = topN(a.zeroResultTerms, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts, ties broken by term.
func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
