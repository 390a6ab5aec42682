// Package store persists notifications, thumbnail references and the label index.
package store

import (
	"context"

	"github.com/sharedalbum/album-server/internal/domain"
)

// DefaultNotificationLimit is the news feed length.
const DefaultNotificationLimit = 10

// Repository is implemented by every storage backend.
type Repository interface {
	// Notifications
	// CreateNotification fails with ErrAlreadyExists when (Message, Generation) is stored.
	CreateNotification(ctx context.Context, n *domain.Notification) error
	NotificationExists(ctx context.Context, message, generation string) (bool, error)
	// ListRecentNotifications returns up to limit notifications, newest first.
	ListRecentNotifications(ctx context.Context, limit int) ([]*domain.Notification, error)

	// Thumbnail references
	SaveThumbnail(ctx context.Context, ref *domain.ThumbnailReference) error
	GetThumbnail(ctx context.Context, key string) (*domain.ThumbnailReference, error)
	// DeleteThumbnail is idempotent.
	DeleteThumbnail(ctx context.Context, key string) error
	// ListThumbnails returns every reference, newest first.
	ListThumbnails(ctx context.Context) ([]*domain.ThumbnailReference, error)
	CountThumbnails(ctx context.Context) (int, error)

	// Labels
	GetLabel(ctx context.Context, name string) (*domain.Label, error)
	// ListLabels returns every label ordered by name.
	ListLabels(ctx context.Context) ([]*domain.Label, error)
	// AddThumbnailToLabels creates missing labels and appends key where absent.
	AddThumbnailToLabels(ctx context.Context, labels []string, key string) error
	// RemoveThumbnailFromLabels removes key, deleting labels left empty and
	// skipping labels that do not exist.
	RemoveThumbnailFromLabels(ctx context.Context, labels []string, key string) error

	Backend() string
	Close() error
}

// ClampLimit applies the default feed length and an upper bound.
func ClampLimit(limit, maxLimit int) int {
	if limit <= 0 {
		return DefaultNotificationLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
