// Package tracing keeps a small in-process span tree per request. The HTTP
// middleware opens the root, create and search hang children off it, and the
// finished tree is logged through slog one record per span.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration

	mu       sync.Mutex
	attrs    map[string]any
	children []*Span
}

func newSpan(name, traceID string) *Span {
	return &Span{Name: name, TraceID: traceID, StartTime: time.Now(), attrs: map[string]any{}}
}

// StartSpan opens a root span carried by the returned context. traceID
// defaults to a random UUID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	s := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. With no parent the span
// still works but belongs to no tree.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		s := newSpan(name, "")
		return context.WithValue(ctx, spanKey{}, s), s
	}
	s := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.children = append(parent.children, s)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

func (s *Span) End() {
	d := time.Since(s.StartTime)
	s.mu.Lock()
	s.Duration = d
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = value
}

func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Children returns a copy of the direct children.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children)
}

// Log writes s and its descendants at debug level, parents first.
func (s *Span) Log(logger *slog.Logger) {
	s.walk(0, func(sp *Span, depth int, attrs []slog.Attr) {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "span",
			slog.String("trace_id", sp.TraceID),
			slog.String("span", sp.Name),
			slog.Float64("duration_ms", float64(sp.Duration.Microseconds())/1000),
			slog.Int("depth", depth),
			slog.Attr{Key: "attrs", Value: slog.GroupValue(attrs...)},
		)
	})
}

func (s *Span) walk(depth int, visit func(*Span, int, []slog.Attr)) {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, len(s.attrs))
	for _, k := range slices.Sorted(maps.Keys(s.attrs)) {
		attrs = append(attrs, slog.Any(k, s.attrs[k]))
	}
	children := slices.Clone(s.children)
	s.mu.Unlock()

	visit(s, depth, attrs)
	for _, c := range children {
		c.walk(depth+1, visit)
	}
}
