package server

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP returns a per-client-IP limiter allowing requests per window.
// A non-positive limit disables rate limiting.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			AddLogField(r.Context(), "rate_limited", "true")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}),
	)
}
