package sqlite

import (
	"context"
	"fmt"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/store"
)

const notificationColumns = `id, message, generation, created_at`

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*domain.Notification, error) {
	var (
		n         domain.Notification
		createdAt string
	)
	if err := scanner.Scan(&n.ID, &n.Message, &n.Generation, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotification inserts n. Returns store.ErrAlreadyExists on a duplicate
// (message, generation).
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		return store.ErrInvalidInput.WithMessage("notification id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?)`,
		n.ID, n.Message, n.Generation, formatTime(n.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessage("notification already recorded").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// NotificationExists reports whether (message, generation) was recorded.
func (s *Store) NotificationExists(ctx context.Context, message, generation string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE message = ? AND generation = ?)`,
		message, generation,
	).Scan(&exists)
	return exists, err
}

// ListRecentNotifications returns up to limit notifications, newest first.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = store.DefaultNotificationLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
