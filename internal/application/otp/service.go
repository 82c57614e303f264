package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	"github.com/bandhan-app/bandhan-api/internal/infrastructure/verify"
	"github.com/bandhan-app/bandhan-api/internal/pkg/id"
)

const (
	PurposeSignup         = "signup"
	PurposeForgotPassword = "forgot-password"
	PurposePhoneVerify    = "phone-verify"
)

// usedCodeTTL keeps the single-use guard alive at least as long as any
// provider-side code could still verify.
const usedCodeTTL = 15 * time.Minute

const resetWindow = 15 * time.Minute

// AccountStore is the slice of the account repository the engine needs.
// The Mark* methods are conditional: domain.ErrConflict means the flag was
// already set, which the engine treats as "someone else got there first".
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	MarkEmailVerified(ctx context.Context, accountID string) error
	MarkPhoneVerified(ctx context.Context, accountID string) error
	MarkWelcomeSent(ctx context.Context, accountID string) error
}

type CodeStore interface {
	SaveCode(ctx context.Context, identifier, purpose, code string, ttl time.Duration) error
	ConsumeCode(ctx context.Context, identifier, purpose, code string) (bool, error)
	MarkCodeUsed(ctx context.Context, phone, code string, ttl time.Duration) (bool, error)
	ReleaseCode(ctx context.Context, phone, code string) error
	AllowReset(ctx context.Context, email string, ttl time.Duration) error
}

type ResendCounter interface {
	Count(ctx context.Context, identifier, purpose string, now time.Time) (int64, error)
	Increment(ctx context.Context, identifier, purpose string, now time.Time) (int64, error)
}

type NotificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type TokenSigner interface {
	Sign(accountID, email, role string) (string, error)
}

// VerifyResult is the outcome of a successful verification. Token is set only
// when both channels are verified on the phone path.
type VerifyResult struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type Service interface {
	Request(ctx context.Context, identifier, purpose string) error
	Verify(ctx context.Context, identifier, purpose, code string) (*VerifyResult, error)
}

type Deps struct {
	Accounts      AccountStore
	Codes         CodeStore
	Resend        ResendCounter
	Notifications NotificationStore
	Provider      verify.Provider
	Mailer        Mailer
	SMSSender     SMSSender
	Tokens        TokenSigner // nil when no signing secret is configured

	ResendDailyLimit int
	EmailOTPTTL      time.Duration
	DegradeOpen      bool
}

type service struct {
	Deps
}

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

func (s *service) Request(ctx context.Context, identifier, purpose string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || purpose == "" {
		return fmt.Errorf("identifier and purpose are required: %w", domain.ErrBadRequest)
	}

	switch purpose {
	case PurposeSignup, PurposeForgotPassword, PurposePhoneVerify:
	default:
		return fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}

	if purpose == PurposePhoneVerify {
		if _, err := s.Accounts.GetByPhone(ctx, identifier); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no account for this phone number: %w", domain.ErrNotFound)
			}
			return err
		}
	}

	now := time.Now()
	count, err := s.Resend.Count(ctx, identifier, purpose, now)
	if err != nil {
		if !s.DegradeOpen {
			slog.Error("resend counter unavailable, denying dispatch", "purpose", purpose, "err", err)
			return fmt.Errorf("code dispatch temporarily unavailable: %w", domain.ErrResendLimit)
		}
		slog.Warn("resend counter unavailable, allowing dispatch", "purpose", purpose, "err", err)
		count = 0
	}
	if count >= int64(s.ResendDailyLimit) {
		return fmt.Errorf("daily code limit reached, try again tomorrow: %w", domain.ErrResendLimit)
	}
	if _, err := s.Resend.Increment(ctx, identifier, purpose, now); err != nil {
		slog.Warn("resend counter increment failed", "purpose", purpose, "err", err)
	}

	if purpose == PurposePhoneVerify {
		if _, err := s.Provider.SendOTP(ctx, identifier, "sms"); err != nil {
			slog.Error("provider OTP dispatch failed", "err", err)
			return fmt.Errorf("could not send verification code: %w", domain.ErrDelivery)
		}
		return nil
	}

	// Email purposes generate and hold the code locally; the provider never
	// sees it.
	code, err := sixDigitCode()
	if err != nil {
		return err
	}
	if err := s.Codes.SaveCode(ctx, identifier, purpose, code, s.EmailOTPTTL); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	subject := "Your verification code"
	if purpose == PurposeForgotPassword {
		subject = "Your password recovery code"
	}
	if err := s.Mailer.SendEmail(identifier, subject, "Your code: "+code); err != nil {
		slog.Error("email OTP dispatch failed", "err", err)
		return fmt.Errorf("could not send verification code: %w", domain.ErrDelivery)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, identifier, purpose, code string) (*VerifyResult, error) {
	identifier = strings.TrimSpace(identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || purpose == "" || code == "" {
		return nil, fmt.Errorf("identifier, purpose and code are required: %w", domain.ErrBadRequest)
	}

	switch purpose {
	case PurposeSignup, PurposeForgotPassword:
		return s.verifyEmail(ctx, identifier, purpose, code)
	case PurposePhoneVerify:
		return s.verifyPhone(ctx, identifier, code)
	default:
		return nil, fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}
}

func (s *service) verifyEmail(ctx context.Context, email, purpose, code string) (*VerifyResult, error) {
	// Compare-and-delete: a mismatch leaves the stored code untouched, so a
	// typo does not force a re-request.
	ok, err := s.Codes.ConsumeCode(ctx, email, purpose, code)
	if err != nil {
		return nil, fmt.Errorf("code lookup: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("the code is wrong or has expired: %w", domain.ErrInvalidOTP)
	}

	a, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no account for this email: %w", domain.ErrNotFound)
		}
		return nil, err
	}

	if purpose == PurposeForgotPassword {
		if err := s.Codes.AllowReset(ctx, email, resetWindow); err != nil {
			return nil, fmt.Errorf("open reset window: %w", err)
		}
		return &VerifyResult{Message: "code verified, you may reset your password"}, nil
	}

	if err := s.Accounts.MarkEmailVerified(ctx, a.AccountID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return &VerifyResult{Message: "email already verified"}, nil
		}
		return nil, err
	}
	// The welcome guard's own condition covers "both verified, not yet sent",
	// so it runs regardless of the snapshot read above; the phone channel may
	// have completed concurrently.
	s.maybeSendWelcome(ctx, a)
	return &VerifyResult{Message: "email verified"}, nil
}

func (s *service) verifyPhone(ctx context.Context, phone, code string) (*VerifyResult, error) {
	a, err := s.Accounts.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no account for this phone number: %w", domain.ErrNotFound)
		}
		return nil, err
	}

	// Repeat verifications are cheap: no guard, no provider round-trip, no writes.
	if a.PhoneVerified {
		return &VerifyResult{Message: "phone already verified"}, nil
	}

	// Single-use guard taken before the provider round-trip. The provider's
	// own replay behavior for approved codes is not guaranteed, so the guard
	// is local.
	ok, err := s.Codes.MarkCodeUsed(ctx, phone, code, usedCodeTTL)
	if err != nil {
		if !s.DegradeOpen {
			slog.Error("code guard unavailable, denying verification", "err", err)
			return nil, fmt.Errorf("verification temporarily unavailable: %w", domain.ErrDelivery)
		}
		slog.Warn("code guard unavailable, proceeding without it", "err", err)
		ok = true
	}
	if !ok {
		return nil, fmt.Errorf("this code was already used: %w", domain.ErrInvalidOTP)
	}

	status, err := s.Provider.CheckOTP(ctx, phone, code)
	if err != nil {
		// Free the guard so the user can resubmit once the provider recovers.
		if relErr := s.Codes.ReleaseCode(ctx, phone, code); relErr != nil {
			slog.Warn("release code guard failed", "err", relErr)
		}
		slog.Error("provider OTP check failed", "err", err)
		return nil, fmt.Errorf("could not verify the code: %w", domain.ErrDelivery)
	}
	if status != verify.StatusApproved {
		return nil, fmt.Errorf("incorrect code: %w", domain.ErrInvalidOTP)
	}

	if err := s.Accounts.MarkPhoneVerified(ctx, a.AccountID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a concurrent race; the winner already ran the side effects.
			return &VerifyResult{Message: "phone already verified"}, nil
		}
		return nil, err
	}

	// The welcome guard's own condition covers "both verified, not yet sent",
	// so it runs regardless of the snapshot taken before the provider check.
	s.maybeSendWelcome(ctx, a)

	emailVerified := a.EmailVerified
	if !emailVerified {
		// The email channel may have been verified while the provider
		// round-trip was in flight; re-read before deciding on the token.
		if fresh, err := s.Accounts.GetByPhone(ctx, phone); err == nil {
			emailVerified = fresh.EmailVerified
		}
	}
	if emailVerified {
		if s.Tokens == nil {
			return nil, fmt.Errorf("session tokens are not configured: %w", domain.ErrConfiguration)
		}
		token, err := s.Tokens.Sign(a.AccountID, a.Email, a.Role)
		if err != nil {
			return nil, fmt.Errorf("sign session token: %w", err)
		}
		return &VerifyResult{Message: "phone verified", Token: token}, nil
	}

	return &VerifyResult{Message: "phone verified, verify your email to sign in"}, nil
}

// maybeSendWelcome fires the one-time welcome notification. The conditional
// MarkWelcomeSent write guarantees a single fire across concurrent and
// repeated verifications; delivery failures are logged, never surfaced.
func (s *service) maybeSendWelcome(ctx context.Context, a *domain.Account) {
	if err := s.Accounts.MarkWelcomeSent(ctx, a.AccountID); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			slog.Warn("mark welcome sent failed", "account_id", a.AccountID, "err", err)
		}
		return
	}

	if err := s.Mailer.SendEmail(a.Email, "Welcome to Bandhan", "Your account is fully verified. Welcome aboard!"); err != nil {
		slog.Warn("welcome email failed", "account_id", a.AccountID, "err", err)
	}
	if s.SMSSender != nil {
		if err := s.SMSSender.SendSMS(ctx, a.Phone, "Welcome to Bandhan! Your account is fully verified."); err != nil {
			slog.Warn("welcome SMS failed", "account_id", a.AccountID, "err", err)
		}
	}
	now := time.Now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		AccountID:      a.AccountID,
		Kind:           "welcome",
		Message:        "Your account is fully verified. Welcome aboard!",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Notifications.Put(ctx, n); err != nil {
		slog.Warn("welcome notification record failed", "account_id", a.AccountID, "err", err)
	}
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
