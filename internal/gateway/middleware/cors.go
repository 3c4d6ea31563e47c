// Package middleware holds the gateway-only HTTP middleware: CORS and the
// per-client rate limit.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

type CORSConfig struct {
	AllowOrigins []string // "*" admits any origin
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int // seconds
}

// DefaultCORSConfig admits origins for the API's methods and headers. An
// empty list admits every origin.
func DefaultCORSConfig(origins []string) CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:       24 * 60 * 60,
	}
}

// CORS echoes admitted origins back with the allow headers and ends
// preflight requests with 204. Requests from other origins pass through
// without CORS headers, leaving the browser to block them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	anyOrigin := slices.Contains(cfg.AllowOrigins, "*")
	fixed := http.Header{
		"Access-Control-Allow-Methods":  {strings.Join(cfg.AllowMethods, ", ")},
		"Access-Control-Allow-Headers":  {strings.Join(cfg.AllowHeaders, ", ")},
		"Access-Control-Expose-Headers": {"X-Request-ID, X-Cache"},
		"Access-Control-Max-Age":        {strconv.Itoa(cfg.MaxAge)},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !(anyOrigin || slices.Contains(cfg.AllowOrigins, origin)) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			for k, v := range fixed {
				h[k] = v
			}
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
