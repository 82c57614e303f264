package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	jwtinfra "github.com/bandhan-app/bandhan-api/internal/infrastructure/jwt"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the trusted representation of the caller. Role comes from the
// account record, never from the token: a token is a bearer of identity only.
type Identity struct {
	AccountID   string
	CustomID    string
	Email       string
	Role        string
	DisplayName string
}

type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type AccountGetter interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

// Auth returns middleware that authenticates the request from a bearer token
// (Authorization header first, "token" cookie second) and injects the resolved
// Identity into the request context.
//
// Verification failure detail goes to the logs only; the caller always gets a
// fixed message.
func Auth(verifier TokenVerifier, accounts AccountGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if verifier == nil {
				// No signing secret configured: hard failure, never a silent bypass.
				writeJSONError(w, http.StatusInternalServerError, "server configuration error")
				return
			}

			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				slog.Warn("token verification failed", "err", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Subject == "" {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			a, err := accounts.Get(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeJSONError(w, http.StatusUnauthorized, "account not found")
					return
				}
				slog.Error("account lookup failed during auth", "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			identity := &Identity{
				AccountID:   a.AccountID,
				CustomID:    a.CustomID,
				Email:       a.Email,
				Role:        a.Role, // store role wins over any token claim
				DisplayName: a.DisplayName,
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken locates the bearer credential. Header takes strict priority: a
// present but malformed Authorization header fails without falling back to the
// cookie.
func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || strings.TrimSpace(token) == "" {
			return "", false
		}
		return token, true
	}
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// IdentityFromContext extracts the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	i, ok := ctx.Value(identityKey).(*Identity)
	return i, ok
}

// WithIdentity injects an identity into a context; used by handler tests.
func WithIdentity(ctx context.Context, i *Identity) context.Context {
	return context.WithValue(ctx, identityKey, i)
}
