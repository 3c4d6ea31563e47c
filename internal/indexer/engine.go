// Package indexer turns submitted collections into stored indexes.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/tracing"
)

// Tracker receives analytics events. *analytics.Collector satisfies it.
type Tracker interface {
	Track(event any)
}

type Engine struct {
	store   *store.Store
	metrics *metrics.Metrics
	tracker Tracker
	logger  *slog.Logger
}

// NewEngine creates an Engine over st. m and tracker may be nil.
func NewEngine(st *store.Store, m *metrics.Metrics, tracker Tracker) *Engine {
	return &Engine{
		store:   st,
		metrics: m,
		tracker: tracker,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// CreateIndex validates name and content, builds the index and stores it
// under name, replacing any previous index. It returns every stored
// collection. Nothing is stored when validation fails.
func (e *Engine) CreateIndex(ctx context.Context, name any, content json.RawMessage) (store.Snapshot, error) {
	ctx, span := tracing.StartChildSpan(ctx, "indexer.create_index")
	defer span.End()
	start := time.Now()

	fileName, idx, docs, err := e.build(name, content)
	e.record(ctx, fileName, idx, docs, time.Since(start), err)
	if err != nil {
		span.SetAttr("error", apperrors.Reason(err))
		return nil, err
	}

	e.store.Put(fileName, idx)
	if e.metrics != nil {
		e.metrics.StoredCollections.Set(float64(e.store.Len()))
	}
	span.SetAttr("file_name", fileName)
	span.SetAttr("documents", docs)
	span.SetAttr("terms", len(idx))
	return e.store.Snapshot(), nil
}

func (e *Engine) build(name any, content json.RawMessage) (string, index.Index, int, error) {
	fileName, err := validator.ValidateName(name)
	if err != nil {
		return "", nil, 0, err
	}
	docs, _, err := validator.ValidateCollection(content)
	if err != nil {
		return fileName, nil, 0, err
	}
	return fileName, index.Build(docs), len(docs), nil
}

func (e *Engine) record(ctx context.Context, fileName string, idx index.Index, docs int, elapsed time.Duration, err error) {
	reason := apperrors.Reason(err)
	log := logger.FromContext(ctx)

	if err != nil {
		attrs := []any{"file_name", fileName, "reason", reason}
		var malformed *validator.MalformedError
		if errors.As(err, &malformed) {
			attrs = append(attrs, "positions", malformed.Positions)
		}
		log.Info("index rejected", attrs...)
	} else {
		log.Info("index created",
			"file_name", fileName,
			"documents", docs,
			"terms", len(idx),
			"duration", elapsed,
		)
	}

	if e.metrics != nil {
		e.metrics.IndexCreatesTotal.WithLabelValues(reason).Inc()
		if err == nil {
			e.metrics.DocsIndexedTotal.Add(float64(docs))
			e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
		}
	}

	if e.tracker != nil {
		e.tracker.Track(analytics.IndexEvent{
			Type:      analytics.EventIndexCreate,
			FileName:  fileName,
			Result:    reason,
			Documents: docs,
			Terms:     len(idx),
			LatencyMs: float64(elapsed.Microseconds()) / 1000,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}
}

// GetIndex returns the stored index for name.
func (e *Engine) GetIndex(name string) (index.Index, bool) {
	return e.store.Get(name)
}

// Indexes returns every stored collection.
func (e *Engine) Indexes() store.Snapshot {
	return e.store.Snapshot()
}

// Collections returns the number of stored collections.
func (e *Engine) Collections() int {
	return e.store.Len()
}

// readyListed caps how many collection names the readiness message shows.
const readyListed = 5

// Ready is the readiness check of the index store. The store is in memory,
// so it is always up; the message names the stored collections.
func (e *Engine) Ready(ctx context.Context) health.ComponentHealth {
	names := e.store.Names()
	msg := fmt.Sprintf("%d collections", e.Collections())
	if len(names) > 0 {
		msg += ": " + strings.Join(names[:min(len(names), readyListed)], ", ")
		if len(names) > readyListed {
			msg += ", ..."
		}
	}
	return health.ComponentHealth{Status: health.StatusUp, Message: msg}
}
