package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	jwtinfra "github.com/bandhan-app/bandhan-api/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	claims *jwtinfra.Claims
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(string) (*jwtinfra.Claims, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

type fakeAccounts struct {
	account *domain.Account
	err     error
}

func (f *fakeAccounts) Get(context.Context, string) (*domain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

func claimsFor(accountID, role string) *jwtinfra.Claims {
	return &jwtinfra.Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: accountID},
	}
}

func runAuth(t *testing.T, v *fakeVerifier, a *fakeAccounts, mutate func(*http.Request)) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var captured *Identity
	var tv TokenVerifier
	if v != nil {
		tv = v
	}
	handler := Auth(tv, a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/status", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestAuth_NoCredential_NeverVerifies(t *testing.T) {
	v := &fakeVerifier{}
	rec, _ := runAuth(t, v, &fakeAccounts{}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, v.calls, "signature verification must not be attempted")
	assert.Contains(t, rec.Body.String(), "authentication required")
}

func TestAuth_MalformedBearerHeader_NeverVerifies(t *testing.T) {
	for _, header := range []string{"Bearer ", "Bearer    ", "Basic abc", "tok123"} {
		v := &fakeVerifier{}
		rec, _ := runAuth(t, v, &fakeAccounts{}, func(r *http.Request) {
			r.Header.Set("Authorization", header)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Zero(t, v.calls, "header %q", header)
	}
}

func TestAuth_CookieFallback(t *testing.T) {
	v := &fakeVerifier{claims: claimsFor("a1", "user")}
	a := &fakeAccounts{account: &domain.Account{AccountID: "a1", Role: domain.RoleUser}}
	rec, identity := runAuth(t, v, a, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "token", Value: "tok"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "a1", identity.AccountID)
}

func TestAuth_InvalidToken_FixedMessage(t *testing.T) {
	v := &fakeVerifier{err: errors.New("crypto/hmac: signature mismatch at offset 12")}
	rec, _ := runAuth(t, v, &fakeAccounts{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer bad")
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
	assert.NotContains(t, rec.Body.String(), "hmac", "provider failure detail must not leak")
}

func TestAuth_EmptySubject_Rejected(t *testing.T) {
	v := &fakeVerifier{claims: claimsFor("", "user")}
	rec, _ := runAuth(t, v, &fakeAccounts{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer tok")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_UnknownAccount_Unauthorized(t *testing.T) {
	v := &fakeVerifier{claims: claimsFor("ghost", "user")}
	a := &fakeAccounts{err: fmt.Errorf("account ghost: %w", domain.ErrNotFound)}
	rec, _ := runAuth(t, v, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer tok")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_StoreRoleWinsOverTokenClaim(t *testing.T) {
	// Token claims admin; the store says user. The identity must say user.
	v := &fakeVerifier{claims: claimsFor("a1", domain.RoleAdmin)}
	a := &fakeAccounts{account: &domain.Account{AccountID: "a1", Role: domain.RoleUser}}
	rec, identity := runAuth(t, v, a, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer tok")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, domain.RoleUser, identity.Role)
}

func TestAuth_NilVerifier_HardFailure(t *testing.T) {
	rec, _ := runAuth(t, nil, &fakeAccounts{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer tok")
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{AccountID: "a1", Role: domain.RoleUser}))
	rec := httptest.NewRecorder()
	RequireRole(domain.RoleAdmin)(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	RequireRole(domain.RoleUser, domain.RoleAdmin)(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
