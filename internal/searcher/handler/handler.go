// Package handler serves the search endpoint and the query cache controls.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
)

// cacheDisabled labels searches served without a query cache.
const cacheDisabled = "disabled"

type SearchExecutor interface {
	Execute(ctx context.Context, q executor.Query) (executor.Result, error)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

type Handler struct {
	executor SearchExecutor
	cache    *cache.QueryCache
	tracker  Tracker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a search Handler. queryCache, tracker and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics) *Handler {
	return &Handler{
		executor: exec,
		cache:    queryCache,
		tracker:  tracker,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search serves POST /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.SearchRequest
	if err := ingestion.DecodeBody(r.Body, &req); err != nil {
		log.Debug("undecodable search body", "error", err)
		h.writeFailure(w, err)
		return
	}

	q, flat, err := decodeQuery(req)
	if err != nil {
		h.finish(ctx, req.FileName, flat, nil, cacheDisabled, start, err)
		h.writeFailure(w, err)
		return
	}

	var result executor.Result
	status := cacheDisabled
	compute := func() (executor.Result, error) {
		return h.executor.Execute(ctx, q)
	}
	if h.cache != nil {
		key, keyErr := cache.Key(q.Indexes, q.FileName, flat)
		if keyErr != nil {
			err = keyErr
		} else {
			var s cache.Status
			result, s, err = h.cache.GetOrCompute(ctx, key, compute)
			status = string(s)
		}
	} else {
		result, err = compute()
	}

	h.finish(ctx, req.FileName, flat, result, status, start, err)
	if err != nil {
		log.Error("search failed", "error", err)
		h.writeFailure(w, err)
		return
	}
	w.Header().Set("X-Cache", status)
	h.writeJSON(w, http.StatusOK, result)
}

// decodeQuery checks the index payload before the terms.
func decodeQuery(req ingestion.SearchRequest) (executor.Query, []string, error) {
	indexes, err := executor.ParseIndexPayload(req.Index, req.FileName)
	if err != nil {
		return executor.Query{}, nil, err
	}
	terms, err := parser.FromJSON(req.Terms)
	if err != nil {
		return executor.Query{}, nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	flat := parser.Flatten(terms...)
	if len(flat) == 0 {
		return executor.Query{}, nil, apperrors.ErrTermsEmpty
	}
	return executor.Query{Indexes: indexes, FileName: req.FileName, Terms: terms}, flat, nil
}

func (h *Handler) finish(ctx context.Context, fileName string, flat []string, result executor.Result, cacheStatus string, start time.Time, err error) {
	elapsed := time.Since(start)
	resultType := apperrors.Reason(err)
	hits := result.TotalHits()
	if err == nil && hits == 0 {
		resultType = "zero_result"
	}

	logger.FromContext(ctx).Info("search completed",
		"file_name", fileName,
		"terms", len(flat),
		"hits", hits,
		"result", resultType,
		"cache", cacheStatus,
		"duration", elapsed,
	)

	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		if err == nil {
			h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		}
	}

	if h.tracker != nil {
		normalized := make([]string, 0, len(flat))
		for _, term := range flat {
			normalized = append(normalized, tokenizer.Normalize(term))
		}
		h.tracker.Track(analytics.SearchEvent{
			Type:        analytics.EventSearch,
			FileName:    fileName,
			Terms:       normalized,
			Collections: len(result),
			TotalHits:   hits,
			Result:      resultType,
			CacheHit:    cacheStatus == string(cache.StatusLocalHit) || cacheStatus == string(cache.StatusRemoteHit),
			LatencyMs:   float64(elapsed.Microseconds()) / 1000,
			Timestamp:   time.Now().UTC(),
			RequestID:   logger.RequestID(ctx),
		})
	}
}

// CacheStats serves GET /api/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": cacheDisabled})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheInvalidate serves POST /api/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": cacheDisabled})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeMessage(w, http.StatusInternalServerError, apperrors.MsgInternal)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeMessage(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err))
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
