package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/platform/redis"
)

// RateLimit returns middleware that rate limits requests per client address
// using a Redis-backed token bucket. When rate limiting is disabled or the
// cache is nil the middleware passes requests through unchanged; Redis
// failures fail open inside the limiter.
func RateLimit(cfg config.RateLimitConfig, cache *redis.Cache, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cache == nil {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cache.CheckRateLimit(
				r.Context(),
				ClientKey(r),
				cfg.RequestsPerMinute,
				cfg.Burst,
			)
			if err != nil {
				logger.Warn("rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				if result.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				}
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey derives the rate limiting identifier for a request: the first
// hop of X-Forwarded-For when present, otherwise the remote address.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
