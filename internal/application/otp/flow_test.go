package otp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	accountapp "github.com/bandhan-app/bandhan-api/internal/application/account"
	"github.com/bandhan-app/bandhan-api/internal/domain"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/cache"
	jwtinfra "github.com/bandhan-app/bandhan-api/internal/infrastructure/jwt"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/verify"
	"github.com/bandhan-app/bandhan-api/internal/transport/http/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fakes below back a full signup-to-authenticated-session walk: the
// account store is an in-memory map with the same conditional-write semantics
// as the DynamoDB repository, and the code stores run against miniredis.

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*domain.Account)}
}

func (m *memAccounts) Put(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[a.AccountID]; exists {
		return domain.ErrConflict
	}
	cp := *a
	m.accounts[a.AccountID] = &cp
	return nil
}

func (m *memAccounts) Get(_ context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAccounts) GetByPhone(_ context.Context, phone string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Phone == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAccounts) Update(_ context.Context, accountID string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (m *memAccounts) flip(accountID string, get func(*domain.Account) *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	flag := get(a)
	if *flag {
		return domain.ErrConflict
	}
	*flag = true
	return nil
}

func (m *memAccounts) MarkEmailVerified(_ context.Context, accountID string) error {
	return m.flip(accountID, func(a *domain.Account) *bool { return &a.EmailVerified })
}

func (m *memAccounts) MarkPhoneVerified(_ context.Context, accountID string) error {
	return m.flip(accountID, func(a *domain.Account) *bool { return &a.PhoneVerified })
}

func (m *memAccounts) MarkWelcomeSent(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	// Same condition as the conditional write in the real repository.
	if a.WelcomeSent || !a.EmailVerified || !a.PhoneVerified {
		return domain.ErrConflict
	}
	a.WelcomeSent = true
	return nil
}

type recordMailer struct {
	mu    sync.Mutex
	sent  []string
	codes []string
}

var sixDigits = regexp.MustCompile(`\d{6}`)

func (m *recordMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, subject)
	if code := sixDigits.FindString(body); code != "" {
		m.codes = append(m.codes, code)
	}
	return nil
}

func (m *recordMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

// approveProvider approves exactly one code value, mimicking the external
// verification service.
type approveProvider struct {
	validCode string
}

func (p *approveProvider) SendOTP(context.Context, string, string) (string, error) {
	return "VE-test", nil
}

func (p *approveProvider) CheckOTP(_ context.Context, _ string, code string) (verify.Status, error) {
	if code == p.validCode {
		return verify.StatusApproved, nil
	}
	return verify.StatusPending, nil
}

func (p *approveProvider) SendMessage(context.Context, string, string) (string, error) {
	return "SM-test", nil
}

type memNotifications struct {
	mu   sync.Mutex
	kind []string
}

func (m *memNotifications) Put(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kind = append(m.kind, n.Kind)
	return nil
}

type noopSMS struct{}

func (noopSMS) SendSMS(context.Context, string, string) error { return nil }

func TestSignupToAuthenticatedSession(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	accounts := newMemAccounts()
	mailer := &recordMailer{}
	notifs := &memNotifications{}
	provider := &approveProvider{validCode: "246810"}
	otpStore := cache.NewOTPStore(rdb)

	jwtProvider, err := jwtinfra.NewProvider("flow-test-secret", time.Hour)
	require.NoError(t, err)

	accountSvc := accountapp.NewService(accountapp.Deps{
		Accounts: accounts,
		Resets:   otpStore,
		Tokens:   jwtProvider,
	})
	otpSvc := NewService(Deps{
		Accounts:         accounts,
		Codes:            otpStore,
		Resend:           cache.NewResendCounterStore(rdb),
		Notifications:    notifs,
		Provider:         provider,
		Mailer:           mailer,
		SMSSender:        noopSMS{},
		Tokens:           jwtProvider,
		ResendDailyLimit: 5,
		EmailOTPTTL:      10 * time.Minute,
		DegradeOpen:      true,
	})

	ctx := context.Background()

	// Sign up: both channels start unverified, no session possible.
	created, err := accountSvc.Signup(ctx, domain.SignupRequest{
		Email:       "nisha@example.com",
		Phone:       "+919876543210",
		Password:    "correct-horse",
		DisplayName: "Nisha",
	})
	require.NoError(t, err)

	login, err := accountSvc.Login(ctx, domain.LoginRequest{Email: "nisha@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Empty(t, login.Token, "unverified account must not receive a session token")

	// Verify the email channel with the mailed code.
	require.NoError(t, otpSvc.Request(ctx, "nisha@example.com", PurposeSignup))
	code := mailer.lastCode()
	require.NotEmpty(t, code)

	// A mistyped attempt is refused but does not burn the mailed code.
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	_, err = otpSvc.Verify(ctx, "nisha@example.com", PurposeSignup, wrong)
	require.ErrorIs(t, err, domain.ErrInvalidOTP)

	result, err := otpSvc.Verify(ctx, "nisha@example.com", PurposeSignup, code)
	require.NoError(t, err)
	assert.Equal(t, "email verified", result.Message)
	assert.Empty(t, result.Token)

	// A mailed code is single use.
	_, err = otpSvc.Verify(ctx, "nisha@example.com", PurposeSignup, code)
	require.Error(t, err)

	// Verify the phone channel; completing the pair mints the session token
	// and fires the welcome exactly once.
	require.NoError(t, otpSvc.Request(ctx, "+919876543210", PurposePhoneVerify))
	result, err = otpSvc.Verify(ctx, "+919876543210", PurposePhoneVerify, "246810")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, []string{"welcome"}, notifs.kind)

	// Replaying the same phone code is refused without another provider check.
	_, err = otpSvc.Verify(ctx, "+919876543210", PurposePhoneVerify, "246810")
	require.NoError(t, err, "repeat verification of a verified phone is a cheap no-op")

	// The token authenticates back to the same account through the middleware.
	var identity *middleware.Identity
	handler := middleware.Auth(jwtProvider, accounts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = middleware.IdentityFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/status", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, identity)
	assert.Equal(t, created.AccountID, identity.AccountID)
	assert.Equal(t, domain.RoleUser, identity.Role)

	// Login now yields a token as well.
	login, err = accountSvc.Login(ctx, domain.LoginRequest{Email: "nisha@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
}
