package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probeEndpoint(t *testing.T, handler http.HandlerFunc) (int, statusBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body statusBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, body
}

// runFor starts h and stops it after enough ticks for thresholds to trip.
func runFor(t *testing.T, h *Health, ticks int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, time.Millisecond) }()

	time.Sleep(time.Duration(ticks) * 5 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("no probes", func(t *testing.T) {
		code, body := probeEndpoint(t, New().LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
		assert.Empty(t, body.Checks)
	})

	t.Run("failing probe", func(t *testing.T) {
		h := New()
		h.Add(Liveness, "disk", time.Second, func(context.Context) error {
			return errors.New("read-only filesystem")
		})
		runFor(t, h, FailureThreshold+2)

		code, body := probeEndpoint(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "read-only filesystem", body.Checks["disk"])
	})

	t.Run("readiness probes do not affect liveness", func(t *testing.T) {
		h := New()
		h.Add(Readiness, "postgres", time.Second, func(context.Context) error {
			return errors.New("down")
		})
		runFor(t, h, FailureThreshold+2)

		code, _ := probeEndpoint(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestFailureBelowThreshold(t *testing.T) {
	h := New()
	p := &probe{name: "flaky", timeout: time.Second, check: func(context.Context) error {
		return errors.New("timeout")
	}}
	p.healthy.Store(true)
	h.probes = append(h.probes, p)

	for range FailureThreshold - 1 {
		p.tick(context.Background())
	}
	code, _ := probeEndpoint(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)

	p.tick(context.Background())
	code, _ = probeEndpoint(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestProbeRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	h := New()
	h.Add(Liveness, "db", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("refused")
		}
		return nil
	})
	p := h.probes[0]

	for range FailureThreshold {
		p.tick(context.Background())
	}
	_, failed := p.failure()
	require.True(t, failed)

	failing.Store(false)
	p.tick(context.Background())
	_, failed = p.failure()
	assert.False(t, failed)
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready until switched on", func(t *testing.T) {
		h := New()

		code, body := probeEndpoint(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks, "_readiness")
		assert.False(t, h.IsReady())

		h.SetReady(true)
		code, body = probeEndpoint(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
		assert.True(t, h.IsReady())

		h.SetReady(false)
		code, _ = probeEndpoint(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("one failing probe of many", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		h.Add(Readiness, "postgres", time.Second, func(context.Context) error { return nil })
		h.Add(Readiness, "pool", time.Second, func(context.Context) error {
			return errors.New("saturated")
		})
		runFor(t, h, FailureThreshold+2)

		code, body := probeEndpoint(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"pool": "saturated"}, body.Checks)
		assert.False(t, h.IsReady())
	})
}

func TestProbeTimeout(t *testing.T) {
	h := New()
	h.Add(Liveness, "slow", time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	p := h.probes[0]
	for range FailureThreshold {
		p.tick(context.Background())
	}

	msg, failed := p.failure()
	require.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
