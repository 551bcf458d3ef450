package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	UserClaimsKey contextKey = "user_claims"
	UserIDKey     contextKey = "user_id"
)

// Middleware returns a net/http middleware enforcing a valid bearer token on
// every request. Public routes are handled by the caller's mux, not here —
// the core has no unauthenticated write path.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(signer, r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			ctx = context.WithValue(ctx, UserIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(signer *Signer, r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get(tokenHeader)
	if authHeader == "" {
		return nil, errors.New("missing authorization header")
	}
	if !strings.HasPrefix(authHeader, tokenPrefix) {
		return nil, errors.New("invalid authorization header format")
	}

	token := strings.TrimPrefix(authHeader, tokenPrefix)
	claims, err := signer.ValidateToken(token)
	if err != nil {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// GetUserID retrieves the bidder id from the context.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok
}

// MustGetUserID retrieves the bidder id from the context.
// Panics if absent - use only in handlers mounted behind Middleware.
func MustGetUserID(ctx context.Context) string {
	id, ok := ctx.Value(UserIDKey).(string)
	if !ok || id == "" {
		panic("MustGetUserID called without auth middleware - user_id not in context")
	}
	return id
}
