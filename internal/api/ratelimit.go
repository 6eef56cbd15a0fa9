package api

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/tourbook/tourbook-server/internal/http/response"
	"github.com/tourbook/tourbook-server/internal/ratelimit"
)

const (
	// RateLimitMessage is returned once a client has spent its budget.
	RateLimitMessage = "Too many requests coming from your IP, try again in one hour."
	// ThrottleMessage is returned for too many credential attempts.
	ThrottleMessage = "Too many attempts. Please try again later."
)

// RateLimitMiddleware limits requests per client IP.
// Returns 429 Too Many Requests when the budget is spent. A failing limiter
// backend lets the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			res, err := limiter.Take(r.Context(), key)
			if err != nil {
				logger.Error("Rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			reset := strconv.Itoa(int(math.Ceil(res.ResetAfter.Seconds())))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", reset)

			if !res.Allowed {
				logger.Warn("Rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", reset)
				response.TooManyRequests(w, RateLimitMessage, logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ThrottleMiddleware slows down repeated credential attempts per client IP.
func ThrottleMiddleware(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("Credential attempts throttled",
					"ip", key,
					"path", r.URL.Path,
				)
				response.TooManyRequests(w, ThrottleMessage, logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request. middleware.RealIP has
// already folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
