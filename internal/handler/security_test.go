package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-orders/internal/domain/auth"
)

func newKeyRepo(scopes ...string) *mockAPIKeyRepo {
	hash := auth.HashKey(testPepper, adminKey)
	return &mockAPIKeyRepo{keys: map[string]*auth.APIKeyInfo{
		hash: {ID: "k1", KeyHash: hash, Name: "ops", Scopes: scopes},
	}}
}

func TestAuthenticate(t *testing.T) {
	sec := NewSecurity(newKeyRepo(auth.ScopeOrdersAdmin), testPepper)

	info, err := sec.Authenticate(context.Background(), adminKey)
	require.NoError(t, err)
	assert.Equal(t, "k1", info.ID)

	for _, key := range []string{"", "unknown"} {
		_, err := sec.Authenticate(context.Background(), key)
		require.ErrorIs(t, err, errUnauthorized, "key %q", key)
	}
}

func TestRequire_LookupFailure(t *testing.T) {
	keys := newKeyRepo(auth.ScopeOrdersAdmin)
	keys.err = errors.New("connection refused")
	sec := NewSecurity(keys, testPepper)

	_, err := sec.Authenticate(context.Background(), adminKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUnauthorized)

	core, logs := observer.New(zapcore.ErrorLevel)
	called := false
	h := sec.Require(auth.ScopeOrdersAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", http.NoBody)
	req = req.WithContext(zctx.Base(req.Context(), zap.New(core)))
	req.Header.Set(APIKeyHeader, adminKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	require.Equal(t, 1, logs.FilterMessage("API key lookup failed").Len())
}

func TestRequire_StoresKeyInContext(t *testing.T) {
	sec := NewSecurity(newKeyRepo(auth.ScopeOrdersAdmin), testPepper)

	var got *auth.APIKeyInfo
	h := sec.Require(auth.ScopeOrdersAdmin)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = APIKeyFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(APIKeyHeader, adminKey)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "ops", got.Name)

	_, ok := APIKeyFromContext(context.Background())
	assert.False(t, ok)
}

func TestDeleteOrder_AuditLog(t *testing.T) {
	h := New(Config{}, &mockOrderService{deleted: true}, &mockReturnService{},
		NewSecurity(newKeyRepo(auth.ScopeOrdersAdmin), testPepper))
	r := chi.NewRouter()
	h.Mount(r)

	core, logs := observer.New(zapcore.InfoLevel)
	req := httptest.NewRequest(http.MethodDelete, "/api/orders/5", http.NoBody)
	req = req.WithContext(zctx.Base(req.Context(), zap.New(core)))
	req.Header.Set(APIKeyHeader, adminKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	entries := logs.FilterMessage("Order deleted").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(5), fields["order_id"])
	assert.Equal(t, "ops", fields["api_key_name"])
}
