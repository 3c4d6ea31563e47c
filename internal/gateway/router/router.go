// Package router wires the HTTP routes of the service and applies the
// middleware chain.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/analytics"
	gwmw "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/gateway/ratelimit"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/ingestion/handler"
	searchhandler "github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/middleware"
)

type Handlers struct {
	Ingestion *ingesthandler.Handler
	Search    *searchhandler.Handler
	Analytics *analytics.Handler
	Health    *health.Checker
}

// Options tune the middleware chain. Nil Metrics or Limiter disables that
// middleware.
type Options struct {
	Metrics      *metrics.Metrics
	Limiter      *ratelimit.Limiter
	CORS         gwmw.CORSConfig
	Timeout      time.Duration
	MaxBodyBytes int64
	Tracing      bool
}

// New builds the service handler.
//
// Route table:
//
//	POST /api/create, /api/v0/create    build and store an index
//	POST /api/search, /api/v0/search    search an index payload
//	GET  /api/indexes                   every stored collection
//	GET  /api/indexes/{fileName}        one stored collection
//	GET  /api/analytics                 aggregated usage stats
//	GET  /api/analytics/history         saved snapshots, newest first
//	GET  /api/cache/stats               query cache counters
//	POST /api/cache/invalidate          empty the query cache
//	GET  /health/live, /health/ready    health checks
//
// Middleware chain (outermost first):
//
//	RealIP → RequestID → Trace → Metrics → Recover → CORS → [RateLimit → RequestSize → Timeout] → handler
func New(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(pkgmw.RequestID)
	if opts.Tracing {
		r.Use(pkgmw.Trace)
	}
	if opts.Metrics != nil {
		r.Use(pkgmw.Metrics(opts.Metrics))
	}
	r.Use(pkgmw.Recover)
	r.Use(gwmw.CORS(opts.CORS))

	r.NotFound(writeMessage(http.StatusNotFound, "Not found"))
	r.MethodNotAllowed(writeMessage(http.StatusMethodNotAllowed, "Method not allowed"))

	if h.Health != nil {
		r.Get("/health/live", h.Health.LiveHandler())
		r.Get("/health/ready", h.Health.ReadyHandler())
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(gwmw.RateLimit(opts.Limiter))
		}
		if opts.MaxBodyBytes > 0 {
			r.Use(chimw.RequestSize(opts.MaxBodyBytes))
		}
		r.Use(pkgmw.Timeout(opts.Timeout))

		for _, prefix := range []string{"/api", "/api/v0"} {
			r.Post(prefix+"/create", h.Ingestion.Create)
			r.Post(prefix+"/search", h.Search.Search)
		}
		r.Get("/api/indexes", h.Ingestion.ListIndexes)
		r.Get("/api/indexes/{fileName}", h.Ingestion.GetIndex)
		r.Get("/api/cache/stats", h.Search.CacheStats)
		r.Post("/api/cache/invalidate", h.Search.CacheInvalidate)
		if h.Analytics != nil {
			r.Get("/api/analytics", h.Analytics.Stats)
			r.Get("/api/analytics/history", h.Analytics.History)
		}
	})

	return r
}

func writeMessage(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(message)
	}
}
