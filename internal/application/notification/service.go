package notification

import (
	"context"
	"fmt"

	"github.com/bandhan-app/bandhan-api/internal/domain"
)

type Store interface {
	ListUnread(ctx context.Context, accountID string) ([]domain.Notification, error)
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) (*domain.Notification, error)
}

type Service interface {
	ListUnread(ctx context.Context, accountID string) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID, accountID string) (*domain.Notification, error)
}

type service struct {
	repo Store
}

func NewService(repo Store) Service {
	return &service{repo: repo}
}

func (s *service) ListUnread(ctx context.Context, accountID string) ([]domain.Notification, error) {
	return s.repo.ListUnread(ctx, accountID)
}

func (s *service) MarkAsRead(ctx context.Context, notificationID, accountID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.AccountID != accountID {
		return nil, fmt.Errorf("not your notification: %w", domain.ErrForbidden)
	}
	return s.repo.MarkAsRead(ctx, notificationID)
}
