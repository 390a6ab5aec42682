package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharedalbum/album-server/internal/domain"
)

// CreateNotification stores n. The dedup index makes the uniqueness check and the
// insert one transaction, so of two racing deliveries exactly one succeeds.
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		return ErrInvalidInput.WithMessage("notification id is required")
	}
	if err := s.notifications.Create(ctx, n.ID, n); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return ErrAlreadyExists.WithMessage("notification already recorded").WithCause(err)
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// NotificationExists reports whether (message, generation) was recorded.
func (s *Store) NotificationExists(ctx context.Context, message, generation string) (bool, error) {
	return s.notifications.ExistsByIndex(ctx, indexDedup, domain.NotificationDedupKey(message, generation))
}

// ListRecentNotifications returns up to limit notifications, newest first.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	out := make([]*domain.Notification, 0, limit)
	for n, err := range s.notifications.ListByIndex(ctx, indexCreated, true) {
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
