package store

import (
	"context"
	"fmt"

	"github.com/sharedalbum/album-server/internal/domain"
)

// SaveThumbnail inserts or replaces the reference stored under its key.
func (s *Store) SaveThumbnail(ctx context.Context, ref *domain.ThumbnailReference) error {
	if ref.ThumbnailKey == "" {
		return ErrInvalidInput.WithMessage("thumbnail key is required")
	}
	if err := s.thumbnails.Upsert(ctx, ref.ThumbnailKey, ref); err != nil {
		return fmt.Errorf("save thumbnail %s: %w", ref.ThumbnailKey, err)
	}
	return nil
}

// GetThumbnail returns the reference for key or ErrNotFound.
func (s *Store) GetThumbnail(ctx context.Context, key string) (*domain.ThumbnailReference, error) {
	return s.thumbnails.Get(ctx, key)
}

// DeleteThumbnail removes the reference for key if present.
func (s *Store) DeleteThumbnail(ctx context.Context, key string) error {
	return s.thumbnails.Delete(ctx, key)
}

// ListThumbnails returns every reference, newest first.
func (s *Store) ListThumbnails(ctx context.Context) ([]*domain.ThumbnailReference, error) {
	var out []*domain.ThumbnailReference
	for ref, err := range s.thumbnails.ListByIndex(ctx, indexCreated, true) {
		if err != nil {
			return nil, fmt.Errorf("list thumbnails: %w", err)
		}
		out = append(out, ref)
	}
	if out == nil {
		out = []*domain.ThumbnailReference{}
	}
	return out, nil
}

// CountThumbnails returns the number of stored references.
func (s *Store) CountThumbnails(ctx context.Context) (int, error) {
	return s.thumbnails.Count(ctx)
}
