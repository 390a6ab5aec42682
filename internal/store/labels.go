package store

import (
	"context"
	"fmt"

	"github.com/sharedalbum/album-server/internal/domain"
)

// GetLabel returns the label called name or ErrNotFound.
func (s *Store) GetLabel(ctx context.Context, name string) (*domain.Label, error) {
	return s.labels.Get(ctx, name)
}

// ListLabels returns every label ordered by name.
func (s *Store) ListLabels(ctx context.Context) ([]*domain.Label, error) {
	out := []*domain.Label{}
	for l, err := range s.labels.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list labels: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

// AddThumbnailToLabels appends key to each label, creating labels on first use.
// Each label is updated in its own transaction.
func (s *Store) AddThumbnailToLabels(ctx context.Context, labels []string, key string) error {
	for _, name := range labels {
		if name == "" {
			continue
		}
		err := s.labels.Modify(ctx, name, func(current *domain.Label) (*domain.Label, error) {
			if current == nil {
				current = &domain.Label{Name: name}
			}
			current.Add(key)
			return current, nil
		})
		if err != nil {
			return fmt.Errorf("add %s to label %q: %w", key, name, err)
		}
	}
	return nil
}

// RemoveThumbnailFromLabels removes key from each label, deleting labels that
// become empty. Labels that do not exist are skipped.
func (s *Store) RemoveThumbnailFromLabels(ctx context.Context, labels []string, key string) error {
	for _, name := range labels {
		if name == "" {
			continue
		}
		err := s.labels.Modify(ctx, name, func(current *domain.Label) (*domain.Label, error) {
			if current == nil {
				return nil, nil
			}
			current.Remove(key)
			if current.IsEmpty() {
				return nil, nil
			}
			return current, nil
		})
		if err != nil {
			return fmt.Errorf("remove %s from label %q: %w", key, name, err)
		}
	}
	return nil
}
