// Package ratelimit limits requests per caller, in Redis when shared state is
// available and in process otherwise.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the limiter.
type Config struct {
	Client    redis.Cmdable
	Limit     int
	Window    time.Duration
	KeyPrefix string
	// KeyFunc identifies the caller. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	Logger  *zap.Logger
}

// ClientIP returns the first X-Forwarded-For hop, else the RemoteAddr host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware counts requests per caller per window and answers 429 once the
// limit is exceeded. Redis failures let the request through.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "videomaker:rl:"
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	limit := strconv.Itoa(cfg.Limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := cfg.KeyFunc(r)
			if id == "" {
				id = "anonymous"
			}
			key := cfg.KeyPrefix + id

			count, err := cfg.Client.Incr(ctx, key).Result()
			if err != nil {
				cfg.Logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			reset := int(cfg.Window.Seconds())
			ttl, err := cfg.Client.TTL(ctx, key).Result()
			switch {
			case err != nil:
				cfg.Logger.Warn("rate limiter ttl failed", zap.String("key", key), zap.Error(err))
			case ttl < 0:
				// No expiry yet: a new window, or an earlier Expire that failed.
				if err := cfg.Client.Expire(ctx, key, cfg.Window).Err(); err != nil {
					cfg.Logger.Warn("rate limiter expire failed", zap.String("key", key), zap.Error(err))
				}
			default:
				reset = int(ttl.Seconds())
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
			if count > int64(cfg.Limit) {
				writeLimited(w, cfg.Limit, cfg.Window, reset)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(cfg.Limit)-count))
			next.ServeHTTP(w, r)
		})
	}
}

// writeLimited answers 429 with the JSON envelope shared by every limiter.
func writeLimited(w http.ResponseWriter, limit int, window time.Duration, reset int) {
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", strconv.Itoa(reset))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":            false,
		"error":         "RATE_LIMITED",
		"limit":         limit,
		"window":        window.String(),
		"retryAfterSec": reset,
	})
}
