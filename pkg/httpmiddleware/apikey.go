package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// HeaderAPIKey carries the caller's raw API key.
const HeaderAPIKey = "api_key"

// KeyVerifier checks a raw API key. It returns a non-nil error for any key
// that must be refused.
type KeyVerifier func(ctx context.Context, key string) error

// APIKey refuses requests whose api_key header does not pass verify.
func APIKey(verify KeyVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verify(r.Context(), r.Header.Get(HeaderAPIKey)); err != nil {
				zctx.From(r.Context()).Debug("API key rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
