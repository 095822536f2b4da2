package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/1", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	handler := RateLimit(ctx, RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		rec := serve(handler, "10.0.0.1:9999", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}

	rec := serve(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)

	// Another client has its own budget.
	rec = serve(handler, "10.0.0.2:9999", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	handler := RateLimit(ctx, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Key:    func(r *http.Request) string { return r.Header.Get("X-API-Key") },
	})(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "1.1.1.1:1", map[string]string{"X-API-Key": "a"}).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "1.1.1.1:1", map[string]string{"X-API-Key": "b"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "2.2.2.2:1", map[string]string{"X-API-Key": "a"}).Code)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := range 4 {
		remaining, reset, ok := l.take("c", t0.Add(time.Duration(i)*time.Second))
		require.True(t, ok)
		assert.Equal(t, 3-i, remaining)
		assert.Equal(t, t0.Add(time.Minute), reset)
	}
	_, _, ok := l.take("c", t0.Add(10*time.Second))
	assert.False(t, ok)

	// Halfway through the next window half of the previous count still
	// applies.
	mid := t0.Add(90 * time.Second)
	for range 2 {
		_, _, ok = l.take("c", mid)
		require.True(t, ok)
	}
	_, _, ok = l.take("c", mid)
	assert.False(t, ok)

	// Two windows later the history is gone.
	_, _, ok = l.take("c", t0.Add(5*time.Minute))
	assert.True(t, ok)
}

func TestLimiter_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	l.take("old", t0)
	l.take("new", t0.Add(2*time.Minute))
	l.evict(t0.Add(2*time.Minute + time.Second))

	assert.NotContains(t, l.clients, "old")
	assert.Contains(t, l.clients, "new")
}

func TestClientIP(t *testing.T) {
	for _, tc := range []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.168.1.1:1234", nil, "192.168.1.1"},
		{"forwarded chain", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"no port", "unix", nil, "unix"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}
