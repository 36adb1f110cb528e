package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Limiter applies a token bucket per client IP. Buckets of clients that
// stay idle for IdleTTL are dropped every CleanupInterval until Stop.
type Limiter struct {
	mu      sync.Mutex
	clients *gocache.Cache
	limit   rate.Limit
	burst   int

	hits atomic.Int64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	// Burst defaults to RequestsPerMinute.
	Burst           int
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		IdleTTL:           10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = config.RequestsPerMinute
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		// no go-cache janitor: it could only be stopped by the GC finalizer
		clients: gocache.New(config.IdleTTL, gocache.NoExpiration),
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.Burst,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.janitor(config.CleanupInterval)
	return rl
}

func (rl *Limiter) janitor(interval time.Duration) {
	defer close(rl.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.clients.DeleteExpired()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) bucket(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.clients.Get(clientIP); ok {
		l := v.(*rate.Limiter)
		// refresh the idle expiry
		rl.clients.SetDefault(clientIP, l)
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.SetDefault(clientIP, l)
	return l
}

// Allow checks if a request from the given IP should be allowed
func (rl *Limiter) Allow(clientIP string) bool {
	return rl.allowAt(clientIP, time.Now())
}

func (rl *Limiter) allowAt(clientIP string, now time.Time) bool {
	if rl.bucket(clientIP).AllowN(now, 1) {
		return true
	}
	rl.hits.Add(1)
	return false
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.clients.ItemCount()
}

// Stop ends the cleanup goroutine and drops every tracked client. It is
// safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
	rl.clients.Flush()
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.hits.Load(),
		ClientCount: int64(rl.clients.ItemCount()),
	}
}

// Middleware limits state-changing requests. GET, HEAD and OPTIONS pass
// through untouched.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			clientIP := extractIP(r)
			if !rl.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"component", "rate_limit",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path)
				if onLimit != nil {
					onLimit(w, r)
				} else {
					w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *Limiter) retryAfterSeconds() int {
	if rl.limit <= 0 {
		return 60
	}
	secs := int(1/float64(rl.limit) + 0.5)
	if secs < 1 {
		secs = 1
	}
	return secs
}
