// internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Policy defines a fixed-window rate limit for one endpoint.
type Policy struct {
	// Name identifies the limited endpoint in logs (e.g. "jobs:enqueue").
	Name   string
	Window time.Duration
	Limit  int
	// Key builds the bucket key for a request; defaults to the client IP.
	Key func(r *http.Request) string
}

// Store abstracts the shared counter store for fixed-window limiting. The
// Postgres store makes limits durable and shared across instances.
type Store interface {
	// Allow increments the counter for key in the current window. When the
	// limit is exceeded, retryAfterSec says when the window resets.
	Allow(key string, limit int, window time.Duration) (allowed bool, retryAfterSec int, err error)
}

// Middleware enforces the policy with the given store. Store failures let the
// request through: losing rate limiting beats losing the endpoint.
func Middleware(p Policy, s Store, log *zap.Logger) func(http.Handler) http.Handler {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	if p.Limit <= 0 {
		p.Limit = 60
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if p.Key != nil {
				key = p.Key(r)
			}
			allowed, retryAfter, err := s.Allow(p.Name+":"+key, p.Limit, p.Window)
			if err != nil {
				log.Warn("rate limit store unavailable", zap.String("endpoint", p.Name), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				log.Warn("rate limit exceeded",
					zap.String("endpoint", p.Name), zap.String("key", key), zap.Int("retry_after", retryAfter))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
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
