package middleware

import (
	"net/http"
	"time"
)

const timeoutBody = `"Request timed out"`

// Timeout bounds the time a handler may take. Past the deadline the client
// gets 503 and whatever the handler writes afterwards is discarded. A
// non-positive timeout disables the limit.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
