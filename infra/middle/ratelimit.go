package middle

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mstgnz/telepay/infra/response"
)

// RateLimiter counts requests per client in fixed one-minute windows
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	period   time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	hits  int
}

// NewRateLimiter allows limit requests per minute per client, 100 when limit is not positive.
// Stop ends the background sweep.
func NewRateLimiter(limit int) *RateLimiter {
	rl := newRateLimiter(limit, time.Minute, time.Now)
	go rl.sweep()
	return rl
}

func newRateLimiter(limit int, period time.Duration, now func() time.Time) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Allow records a hit for key and reports whether it fits the current window
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key)
	return ok
}

// take returns whether the hit is allowed and how many remain in the window
func (rl *RateLimiter) take(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.period {
		w = &window{start: now}
		rl.windows[key] = w
	}

	if w.hits >= rl.limit {
		return false, 0
	}
	w.hits++
	return true, rl.limit - w.hits
}

// Stop ends the background sweep; it is safe to call more than once
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.period)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictExpired()
		}
	}
}

func (rl *RateLimiter) evictExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.period {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware rejects clients over their quota with 429
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining := rl.take(GetClientIP(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.period.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Rate limit exceeded", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP returns the host part of RemoteAddr.
// Proxy headers are honoured through chi's RealIP middleware, which rewrites RemoteAddr.
func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.Trim(r.RemoteAddr, "[]")
	}
	if host == "::1" {
		return "127.0.0.1"
	}
	return host
}
