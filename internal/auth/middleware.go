package auth

import (
	"context"
	"fmt"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/utils"
	"net/http"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteErrorMessage(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteErrorMessage(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFrom returns the verified claims, if any.
func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	c, _ := ClaimsFrom(ctx)
	return c.Subject
}

// Actor returns the display name of the authenticated caller, or "".
func Actor(ctx context.Context) string {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return ""
	}
	return c.Actor()
}
