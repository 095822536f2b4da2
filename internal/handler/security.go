package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/pkg/httpmiddleware"
)

// APIKeyHeader carries the raw API key of administrative requests.
const APIKeyHeader = "api_key"

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key authenticated by Security.Require.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// Security authenticates requests with HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given key repository and pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{apikeys: apikeys, pepper: pepper}
}

// errUnauthorized is returned by Authenticate for a missing, unknown or
// mismatching key.
var errUnauthorized = errors.New("unauthorized")

// Authenticate resolves a raw key to its stored record. The lookup is by
// hash; the stored hash is compared again in constant time. Storage failures
// are returned as is so they are not mistaken for a bad key.
func (s *Security) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hash)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return nil, errUnauthorized
	case err != nil:
		return nil, errors.Wrap(err, "lookup api key")
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// Require rejects requests without a valid API key (401) or whose key lacks
// scope (403).
func (s *Security) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			switch {
			case errors.Is(err, errUnauthorized):
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			case err != nil:
				zctx.From(r.Context()).Error("API key lookup failed", zap.Error(err))
				httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !info.HasScope(scope) {
				zctx.From(r.Context()).Warn("API key lacks scope",
					zap.String("key_id", info.ID),
					zap.String("scope", scope),
				)
				httpmiddleware.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, apiKeyCtxKey{}, info)))
		})
	}
}

// audit logs an administrative change together with the key that made it.
func audit(r *http.Request, msg string, fields ...zap.Field) {
	if info, ok := APIKeyFromContext(r.Context()); ok {
		fields = append(fields, zap.String("api_key_name", info.Name))
	}
	zctx.From(r.Context()).Info(msg, fields...)
}
