package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("field missing: %w", domain.ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("incorrect code: %w", domain.ErrInvalidOTP), http.StatusUnauthorized},
		{fmt.Errorf("not your notification: %w", domain.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("profile not found: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("already blocked: %w", domain.ErrConflict), http.StatusConflict},
		{fmt.Errorf("try again later: %w", domain.ErrCooldown), http.StatusTooManyRequests},
		{fmt.Errorf("daily limit reached: %w", domain.ErrResendLimit), http.StatusTooManyRequests},
		{fmt.Errorf("could not send code: %w", domain.ErrDelivery), http.StatusInternalServerError},
		{fmt.Errorf("no signing secret: %w", domain.ErrConfiguration), http.StatusInternalServerError},
		{errors.New("dynamodb: ProvisionedThroughputExceededException on accounts"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)

		var env Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Message)
	}
}

func TestHTTPError_UnknownErrorsAreRedacted(t *testing.T) {
	rec := httptest.NewRecorder()
	httpError(rec, errors.New("dial tcp 10.0.3.7:6379: connect: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.3.7", "backend addresses must not leak")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestHTTPError_ConfigurationDetailStaysInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	httpError(rec, fmt.Errorf("JWT_SECRET unset in environment: %w", domain.ErrConfiguration))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "JWT_SECRET")
	assert.Contains(t, rec.Body.String(), "server configuration error")
}

func TestToSafeAccount_OmitsSensitiveFields(t *testing.T) {
	a := &domain.Account{
		AccountID:    "internal-id",
		CustomID:     "nisha-m",
		DisplayName:  "Nisha",
		Email:        "nisha@example.com",
		PasswordHash: "$2a$10$secret",
		Blocked:      []string{"t1"},
	}

	payload, err := json.Marshal(toSafeAccount(a))
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "internal-id")
	assert.NotContains(t, string(payload), "secret")
	assert.Contains(t, string(payload), "nisha-m")
}
