package block

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bandhan-app/bandhan-api/internal/domain"
)

// actionBlock is the cooldown family shared by block and unblock for a given
// (blocker, target) pair, so one counterpart cannot be spammed with
// block/unblock toggles.
const actionBlock = "block"

type AccountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByCustomID(ctx context.Context, customID string) (*domain.Account, error)
	AddBlocked(ctx context.Context, accountID, targetID string) error
	RemoveBlocked(ctx context.Context, accountID, targetID string) error
}

type Cooldowns interface {
	Acquire(ctx context.Context, action, subjectID string, targetID ...string) (bool, error)
	Remaining(ctx context.Context, action, subjectID string, targetID ...string) (time.Duration, error)
}

// BlockedAccount is the public view of a blocked profile. Internal account ids
// never leave this service.
type BlockedAccount struct {
	DisplayName string `json:"display_name"`
	CustomID    string `json:"custom_id"`
}

type Service interface {
	Block(ctx context.Context, blockerID, targetCustomID string) (*BlockedAccount, error)
	Unblock(ctx context.Context, blockerID, targetCustomID string) (*BlockedAccount, error)
	List(ctx context.Context, blockerID string) ([]BlockedAccount, error)
}

type Deps struct {
	Accounts    AccountStore
	Cooldowns   Cooldowns
	DegradeOpen bool
}

type service struct {
	Deps
}

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

func (s *service) Block(ctx context.Context, blockerID, targetCustomID string) (*BlockedAccount, error) {
	target, err := s.resolveTarget(ctx, blockerID, targetCustomID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBlockCooldown(ctx, blockerID, target.AccountID); err != nil {
		return nil, err
	}

	if err := s.Accounts.AddBlocked(ctx, blockerID, target.AccountID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("profile is already blocked: %w", domain.ErrConflict)
		}
		return nil, err
	}

	s.takeBlockCooldown(ctx, blockerID, target.AccountID)
	return &BlockedAccount{DisplayName: target.DisplayName, CustomID: target.CustomID}, nil
}

func (s *service) Unblock(ctx context.Context, blockerID, targetCustomID string) (*BlockedAccount, error) {
	target, err := s.resolveTarget(ctx, blockerID, targetCustomID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBlockCooldown(ctx, blockerID, target.AccountID); err != nil {
		return nil, err
	}

	if err := s.Accounts.RemoveBlocked(ctx, blockerID, target.AccountID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("profile is not blocked: %w", domain.ErrConflict)
		}
		return nil, err
	}

	s.takeBlockCooldown(ctx, blockerID, target.AccountID)
	return &BlockedAccount{DisplayName: target.DisplayName, CustomID: target.CustomID}, nil
}

func (s *service) List(ctx context.Context, blockerID string) ([]BlockedAccount, error) {
	a, err := s.Accounts.Get(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	out := make([]BlockedAccount, 0, len(a.Blocked))
	for _, targetID := range a.Blocked {
		t, err := s.Accounts.Get(ctx, targetID)
		if err != nil {
			slog.Warn("blocked profile lookup failed", "target_id", targetID, "err", err)
			continue
		}
		out = append(out, BlockedAccount{DisplayName: t.DisplayName, CustomID: t.CustomID})
	}
	return out, nil
}

func (s *service) resolveTarget(ctx context.Context, blockerID, targetCustomID string) (*domain.Account, error) {
	if targetCustomID == "" {
		return nil, fmt.Errorf("profile id is required: %w", domain.ErrBadRequest)
	}
	target, err := s.Accounts.GetByCustomID(ctx, targetCustomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if target.AccountID == blockerID {
		return nil, fmt.Errorf("you cannot block yourself: %w", domain.ErrBadRequest)
	}
	return target, nil
}

func (s *service) checkBlockCooldown(ctx context.Context, blockerID, targetID string) error {
	remaining, err := s.Cooldowns.Remaining(ctx, actionBlock, blockerID, targetID)
	if err != nil {
		if s.DegradeOpen {
			slog.Warn("cooldown store unavailable, allowing block change", "err", err)
			return nil
		}
		slog.Error("cooldown store unavailable, denying block change", "err", err)
		return fmt.Errorf("block changes are temporarily unavailable: %w", domain.ErrCooldown)
	}
	if remaining > 0 {
		return fmt.Errorf("this profile was blocked or unblocked recently, try again in %d hours: %w",
			int(math.Ceil(remaining.Hours())), domain.ErrCooldown)
	}
	return nil
}

func (s *service) takeBlockCooldown(ctx context.Context, blockerID, targetID string) {
	if _, err := s.Cooldowns.Acquire(ctx, actionBlock, blockerID, targetID); err != nil {
		slog.Warn("block cooldown write failed", "err", err)
	}
}
