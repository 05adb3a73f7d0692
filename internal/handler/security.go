package handler

import (
	"context"

	"github.com/zaincode21/uruti-discounts/internal/domain/auth"
	"github.com/zaincode21/uruti-discounts/pkg/httpmiddleware"
)

// AdminVerifier admits keys carrying the discounts write scope.
func AdminVerifier(a *auth.Authenticator) httpmiddleware.KeyVerifier {
	return func(ctx context.Context, key string) error {
		_, err := a.Authenticate(ctx, key, auth.ScopeDiscountsWrite)
		return err
	}
}
