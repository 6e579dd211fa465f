package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeCounter implements the three commands the limiter issues.
type fakeCounter struct {
	redis.Cmdable
	mu         sync.Mutex
	counts     map[string]int64
	ttls       map[string]time.Duration
	expireErrs int
	expires    int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires++
	if f.expireErrs > 0 {
		f.expireErrs--
		return redis.NewBoolResult(false, errors.New("connection reset"))
	}
	f.ttls[key] = d
	return redis.NewBoolResult(true, nil)
}

// TTL answers -1 for a key without expiry, like Redis.
func (f *fakeCounter) TTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ttls[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(d, nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	require.Equal(t, "10.0.0.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestMiddlewareLimitsPerCaller(t *testing.T) {
	t.Parallel()

	counter := newFakeCounter()
	h := Middleware(Config{Client: counter, Limit: 2, Window: time.Minute})(okHandler())

	do := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/generate/image", nil)
		r.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	rec := do("1.1.1.1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", rec.Header().Get("X-RateLimit-Reset"))
	require.Equal(t, time.Minute, counter.ttls["videomaker:rl:1.1.1.1"])

	require.Equal(t, http.StatusOK, do("1.1.1.1").Code)

	rec = do("1.1.1.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body["error"])
	require.Equal(t, false, body["ok"])

	require.Equal(t, http.StatusOK, do("2.2.2.2").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	h := Middleware(Config{Client: client, Limit: 1, Window: time.Minute})(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tts", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddlewareRetriesExpireUntilWindowIsSet(t *testing.T) {
	t.Parallel()

	counter := newFakeCounter()
	counter.expireErrs = 1
	h := Middleware(Config{Client: counter, Limit: 5, Window: time.Minute})(okHandler())

	serve := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/tts", nil)
		r.RemoteAddr = "10.0.0.3:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	rec := serve()
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "60", rec.Header().Get("X-RateLimit-Reset"))
	require.NotContains(t, counter.ttls, "videomaker:rl:10.0.0.3")

	rec = serve()
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, time.Minute, counter.ttls["videomaker:rl:10.0.0.3"])
	require.Equal(t, 2, counter.expires)

	serve()
	require.Equal(t, 2, counter.expires, "a key with a window is not re-expired")
}
