package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/bandhan-app/bandhan-api/internal/domain"
	"github.com/bandhan-app/bandhan-api/internal/pkg/id"
)

// actionStatus is the shared cooldown family for deactivate and activate, so an
// account cannot toggle visibility more than once per window in either direction.
const actionStatus = "status"

const defaultDeactivationReason = "taking a break"

const (
	minDeletionReason = 10
	maxDeletionReason = 500
)

// AccountStore is the slice of the account repository this service needs.
// The transition methods are conditional updates: domain.ErrConflict means the
// guard flag changed under us.
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Deactivate(ctx context.Context, accountID, reason string, at time.Time) error
	Activate(ctx context.Context, accountID string, at time.Time) error
	SoftDelete(ctx context.Context, accountID, reason string, at time.Time) error
}

type Cooldowns interface {
	Acquire(ctx context.Context, action, subjectID string, targetID ...string) (bool, error)
	Remaining(ctx context.Context, action, subjectID string, targetID ...string) (time.Duration, error)
}

type NotificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

// StatusInfo is the getStatus read model.
type StatusInfo struct {
	Active        bool       `json:"active"`
	Deleted       bool       `json:"deleted"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	ChangeAllowed bool       `json:"change_allowed"`
	CooldownHours int        `json:"cooldown_hours,omitempty"`
}

type Service interface {
	Deactivate(ctx context.Context, accountID string, reason *string) error
	Activate(ctx context.Context, accountID string) error
	Delete(ctx context.Context, accountID, reason string) error
	Status(ctx context.Context, accountID string) (*StatusInfo, error)
}

type Deps struct {
	Accounts      AccountStore
	Cooldowns     Cooldowns
	Notifications NotificationStore
	Mailer        Mailer
	DegradeOpen   bool
}

type service struct {
	Deps
}

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

func (s *service) Deactivate(ctx context.Context, accountID string, reason *string) error {
	a, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Deleted {
		return fmt.Errorf("account is deleted: %w", domain.ErrConflict)
	}
	if !a.Active {
		return fmt.Errorf("account is already deactivated: %w", domain.ErrConflict)
	}
	if err := s.checkStatusCooldown(ctx, accountID); err != nil {
		return err
	}

	r := defaultDeactivationReason
	if reason != nil && strings.TrimSpace(*reason) != "" {
		r = strings.TrimSpace(*reason)
	}
	if err := s.Accounts.Deactivate(ctx, accountID, r, time.Now()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("account is already deactivated: %w", domain.ErrConflict)
		}
		return err
	}

	s.takeStatusCooldown(ctx, accountID)
	return nil
}

func (s *service) Activate(ctx context.Context, accountID string) error {
	a, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Deleted {
		return fmt.Errorf("account is deleted: %w", domain.ErrConflict)
	}
	if a.Active {
		return fmt.Errorf("account is already active: %w", domain.ErrConflict)
	}
	if err := s.checkStatusCooldown(ctx, accountID); err != nil {
		return err
	}

	if err := s.Accounts.Activate(ctx, accountID, time.Now()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("account is already active: %w", domain.ErrConflict)
		}
		return err
	}

	s.takeStatusCooldown(ctx, accountID)
	return nil
}

func (s *service) Delete(ctx context.Context, accountID, reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) < minDeletionReason || len(reason) > maxDeletionReason {
		return fmt.Errorf("deletion reason must be between %d and %d characters: %w",
			minDeletionReason, maxDeletionReason, domain.ErrBadRequest)
	}

	a, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Deleted {
		return fmt.Errorf("account is already deleted: %w", domain.ErrConflict)
	}

	if err := s.Accounts.SoftDelete(ctx, accountID, reason, time.Now()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("account is already deleted: %w", domain.ErrConflict)
		}
		return err
	}

	// Best-effort farewell; the deletion itself already committed.
	now := time.Now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		AccountID:      accountID,
		Kind:           "deletion",
		Message:        "Your account has been deleted. We're sorry to see you go.",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Notifications.Put(ctx, n); err != nil {
		slog.Warn("deletion notification record failed", "account_id", accountID, "err", err)
	}
	if err := s.Mailer.SendEmail(a.Email, "Account deleted",
		"Your account has been deleted. This cannot be undone."); err != nil {
		slog.Warn("deletion confirmation email failed", "account_id", accountID, "err", err)
	}
	return nil
}

func (s *service) Status(ctx context.Context, accountID string) (*StatusInfo, error) {
	a, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	info := &StatusInfo{
		Active:        a.Active,
		Deleted:       a.Deleted,
		DeactivatedAt: a.DeactivatedAt,
		ChangeAllowed: !a.Deleted,
	}
	if a.Deleted {
		return info, nil
	}
	remaining, err := s.Cooldowns.Remaining(ctx, actionStatus, accountID)
	if err != nil {
		slog.Warn("cooldown read failed on status", "account_id", accountID, "err", err)
		info.ChangeAllowed = s.DegradeOpen
		return info, nil
	}
	if remaining > 0 {
		info.ChangeAllowed = false
		info.CooldownHours = hoursUp(remaining)
	}
	return info, nil
}

func (s *service) checkStatusCooldown(ctx context.Context, accountID string) error {
	remaining, err := s.Cooldowns.Remaining(ctx, actionStatus, accountID)
	if err != nil {
		if s.DegradeOpen {
			slog.Warn("cooldown store unavailable, allowing status change", "account_id", accountID, "err", err)
			return nil
		}
		slog.Error("cooldown store unavailable, denying status change", "account_id", accountID, "err", err)
		return fmt.Errorf("status changes are temporarily unavailable: %w", domain.ErrCooldown)
	}
	if remaining > 0 {
		return fmt.Errorf("status was changed recently, try again in %d hours: %w",
			hoursUp(remaining), domain.ErrCooldown)
	}
	return nil
}

// takeStatusCooldown runs after the transition commits; losing the write only
// means the next toggle is not cooled down, it never rolls back the change.
func (s *service) takeStatusCooldown(ctx context.Context, accountID string) {
	if _, err := s.Cooldowns.Acquire(ctx, actionStatus, accountID); err != nil {
		slog.Warn("cooldown write failed", "account_id", accountID, "err", err)
	}
}

func hoursUp(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}
