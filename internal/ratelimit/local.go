package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxIdleKeys bounds how many callers Local tracks before idle buckets are pruned.
const maxIdleKeys = 10000

// LocalConfig configures an in-process limiter.
type LocalConfig struct {
	Limit  int
	Window time.Duration
	// KeyFunc identifies the caller. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// Local keeps one token bucket per caller. Buckets refill at Limit per Window
// and hold at most Limit tokens, so state is not shared across replicas.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	limit   int
	window  time.Duration
	keyFunc func(*http.Request) string
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal builds a Local limiter. A non-positive limit disables limiting.
func NewLocal(cfg LocalConfig) *Local {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	every := rate.Inf
	if cfg.Limit > 0 {
		every = rate.Every(cfg.Window / time.Duration(cfg.Limit))
	}
	return &Local{
		buckets: make(map[string]*bucket),
		every:   every,
		limit:   cfg.Limit,
		window:  cfg.Window,
		keyFunc: cfg.KeyFunc,
		now:     time.Now,
	}
}

// Allow takes a token for key and reports whether one was available along
// with the tokens left afterwards.
func (l *Local) Allow(key string) (bool, int) {
	if l.limit <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxIdleKeys {
			l.prune(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	remaining := int(math.Max(0, math.Floor(b.limiter.TokensAt(now))))
	return allowed, remaining
}

// prune drops buckets idle for a full window; they would be full again anyway.
func (l *Local) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, key)
		}
	}
}

// Middleware answers 429 once a caller has no tokens left.
func (l *Local) Middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	// Seconds until one token is back.
	reset := int(math.Ceil((l.window / time.Duration(l.limit)).Seconds()))
	limit := strconv.Itoa(l.limit)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFunc(r)
		if key == "" {
			key = "anonymous"
		}
		allowed, remaining := l.Allow(key)
		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
		if !allowed {
			writeLimited(w, l.limit, l.window, reset)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}
