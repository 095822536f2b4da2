package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), tag("outer"), tag("middle"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner"}, calls)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("propagates valid header", func(t *testing.T) {
		rec := serve(h, "1.1.1.1:1", map[string]string{RequestIDHeader: "checkout-42"})
		assert.Equal(t, "checkout-42", seen)
		assert.Equal(t, "checkout-42", rec.Header().Get(RequestIDHeader))
	})

	t.Run("replaces invalid header", func(t *testing.T) {
		for _, bad := range []string{"", strings.Repeat("x", maxRequestIDLen+1), "line\nbreak"} {
			rec := serve(h, "1.1.1.1:1", map[string]string{RequestIDHeader: bad})
			assert.Len(t, seen, 36, "uuid expected for %q", bad)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, rec.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Handler panic", logs.All()[0].Message)
}

func TestLogRequests_RouteAndRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Get("/api/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Handling")
		w.WriteHeader(http.StatusNoContent)
	})

	h := Wrap(r,
		RequestID(),
		InjectLogger(zap.New(core)),
		RouteContext(),
		LogRequests(),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/17", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 2, logs.Len())

	handling := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", handling["request_id"])

	entry := logs.All()[1]
	assert.Equal(t, "Request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "/api/orders/{orderID}", fields["route"])
	assert.Equal(t, "/api/orders/17", fields["path"])
	assert.Equal(t, int64(http.StatusNoContent), fields["status"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestRoutePattern_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, "unknown", RoutePattern(req))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, `order "7" not found`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":404,"message":"order \"7\" not found"}`, rec.Body.String())
}
