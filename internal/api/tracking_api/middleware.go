package tracking_api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

const rateWindow = time.Minute

// RateLimit caps requests per client address within a fixed one-minute window.
// The limiter failing lets the request through.
func RateLimit(rl RateLimiter, perMinute int64, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			key := fmt.Sprintf("ratelimit:api:%s:%d", clientIP(r), now.Unix()/int64(rateWindow.Seconds()))
			ok, n, err := rl.Allow(r.Context(), key, perMinute, rateWindow)
			if err != nil {
				log.WarnContext(r.Context(), "rate limiter unavailable", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(perMinute, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(perMinute-n, 0), 10))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
				writeJSONError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
