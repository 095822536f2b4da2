package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per Window.
	Max    int
	Window time.Duration
	// Key identifies the client. Defaults to ClientIP.
	Key func(*http.Request) string
}

// window counts requests in the current and previous fixed windows. The
// effective count weights the previous window by how much of it still
// overlaps the sliding window ending now.
type window struct {
	start time.Time
	curr  int
	prev  int
}

type limiter struct {
	max  int
	size time.Duration

	mu      sync.Mutex
	clients map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{max: cfg.Max, size: cfg.Window, clients: make(map[string]*window)}
}

// take records one request for key if the limit allows it.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.size)
	w := l.clients[key]
	switch {
	case w == nil:
		w = &window{start: start}
		l.clients[key] = w
	case start.Equal(w.start.Add(l.size)):
		w.start, w.prev, w.curr = start, w.curr, 0
	case start.After(w.start):
		w.start, w.prev, w.curr = start, 0, 0
	}
	reset = w.start.Add(l.size)

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	used := int(math.Floor(float64(w.prev)*overlap)) + w.curr
	if used >= l.max {
		return 0, reset, false
	}
	w.curr++
	return l.max - used - 1, reset, true
}

// evict drops clients idle for two windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.clients {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.clients, key)
		}
	}
}

// RateLimit rejects clients exceeding cfg.Max requests per sliding window
// with 429. Idle clients are evicted in the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	key := cfg.Key
	if key == nil {
		key = ClientIP
	}

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, reset, ok := l.take(key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !ok {
				retry := int(math.Ceil(reset.Sub(now).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retry, 0)))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
