package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	"github.com/bandhan-app/bandhan-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type AccountStore interface {
	Put(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
}

// ResetGate is the single-use password-reset window opened by a verified
// forgot-password OTP.
type ResetGate interface {
	ConsumeReset(ctx context.Context, email string) (bool, error)
}

type TokenSigner interface {
	Sign(accountID, email, role string) (string, error)
}

// LoginResult carries the outcome of a password login. Token is empty until
// both verification channels are complete.
type LoginResult struct {
	Account *domain.Account
	Token   string
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.Account, error)
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
}

type Deps struct {
	Accounts AccountStore
	Resets   ResetGate
	Tokens   TokenSigner // nil when no signing secret is configured
}

type service struct {
	Deps
}

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)

	if _, err := s.Accounts.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email is already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.Accounts.GetByPhone(ctx, phone); err == nil {
		return nil, fmt.Errorf("phone number is already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:      id.New(),
		CustomID:       id.New(),
		DisplayName:    strings.TrimSpace(req.DisplayName),
		Email:          email,
		Phone:          phone,
		PasswordHash:   string(hash),
		Role:           domain.RoleUser,
		Active:         true,
		ProfileVisible: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Accounts.Put(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("account already exists: %w", domain.ErrConflict)
		}
		return nil, err
	}
	return a, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	a, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if a.Deleted {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	result := &LoginResult{Account: a}
	if a.EmailVerified && a.PhoneVerified {
		if s.Tokens == nil {
			return nil, fmt.Errorf("session tokens are not configured: %w", domain.ErrConfiguration)
		}
		token, err := s.Tokens.Sign(a.AccountID, a.Email, a.Role)
		if err != nil {
			return nil, fmt.Errorf("sign session token: %w", err)
		}
		result.Token = token
	}
	return result, nil
}

func (s *service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	ok, err := s.Resets.ConsumeReset(ctx, email)
	if err != nil {
		return fmt.Errorf("reset window lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("password reset not authorized, verify a recovery code first: %w", domain.ErrUnauthorized)
	}

	a, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.Accounts.Update(ctx, a.AccountID, map[string]interface{}{"password_hash": string(hash)})
}
