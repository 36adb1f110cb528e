package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.True(t, rl.allowAt("1.2.3.4", now), "request %d", i)
	}
	assert.False(t, rl.allowAt("1.2.3.4", now))
	assert.True(t, rl.allowAt("5.6.7.8", now), "other clients have their own bucket")

	// one token every 20s
	assert.True(t, rl.allowAt("1.2.3.4", now.Add(21*time.Second)))

	m := rl.GetMetrics()
	assert.Equal(t, int64(1), m.TotalHits)
	assert.Equal(t, int64(2), m.ClientCount)

	rl.Stop()
	assert.Equal(t, 0, rl.ActiveClients())
}

func TestStopEndsCleanupGoroutine(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 5, CleanupInterval: time.Millisecond})
	require.True(t, rl.Allow("1.2.3.4"))

	rl.Stop()
	select {
	case <-rl.done:
	default:
		t.Fatal("cleanup goroutine still running after Stop")
	}
	assert.Equal(t, 0, rl.ActiveClients())

	assert.NotPanics(t, rl.Stop, "second Stop is a no-op")
}

func TestJanitorDropsIdleClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 5, IdleTTL: 10 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer rl.Stop()

	require.True(t, rl.Allow("1.2.3.4"))
	assert.Eventually(t, func() bool { return rl.ActiveClients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMiddlewareOnlyLimitsWrites(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/calculate", nil))
		return rr
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost).Code)
	rr := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, do(http.MethodGet).Code)
	}
}

func TestMiddlewareCustomOnLimit(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	called := 0
	h := rl.Middleware(func(*http.Request) string { return "ip" }, func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusTeapot)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	}
	assert.Equal(t, 1, called)
}
