package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/store"
)

// GetLabel returns the label called name or store.ErrNotFound.
func (s *Store) GetLabel(ctx context.Context, name string) (*domain.Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, lt.thumbnail_key
		FROM labels l
		LEFT JOIN label_thumbnails lt ON lt.label_name = l.name
		WHERE l.name = ?
		ORDER BY lt.seq`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels, err := collectLabels(rows)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, store.ErrNotFound
	}
	return labels[0], nil
}

// ListLabels returns every label ordered by name.
func (s *Store) ListLabels(ctx context.Context) ([]*domain.Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, lt.thumbnail_key
		FROM labels l
		LEFT JOIN label_thumbnails lt ON lt.label_name = l.name
		ORDER BY l.name, lt.seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLabels(rows)
}

// collectLabels folds (name, key) rows ordered by name into labels.
func collectLabels(rows *sql.Rows) ([]*domain.Label, error) {
	out := []*domain.Label{}
	var current *domain.Label
	for rows.Next() {
		var (
			name string
			key  sql.NullString
		)
		if err := rows.Scan(&name, &key); err != nil {
			return nil, err
		}
		if current == nil || current.Name != name {
			current = &domain.Label{Name: name, ThumbnailKeys: []string{}}
			out = append(out, current)
		}
		if key.Valid {
			current.ThumbnailKeys = append(current.ThumbnailKeys, key.String)
		}
	}
	return out, rows.Err()
}

// AddThumbnailToLabels appends key to each label, creating labels on first use.
func (s *Store) AddThumbnailToLabels(ctx context.Context, labels []string, key string) error {
	for _, name := range labels {
		if name == "" {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO labels (name) VALUES (?)`, name); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO label_thumbnails (label_name, thumbnail_key) VALUES (?, ?)`, name, key)
			return err
		})
		if err != nil {
			return fmt.Errorf("add %s to label %q: %w", key, name, err)
		}
	}
	return nil
}

// RemoveThumbnailFromLabels removes key from each label and deletes labels left
// without thumbnails. Missing labels are skipped.
func (s *Store) RemoveThumbnailFromLabels(ctx context.Context, labels []string, key string) error {
	for _, name := range labels {
		if name == "" {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM label_thumbnails WHERE label_name = ? AND thumbnail_key = ?`, name, key); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `
				DELETE FROM labels
				WHERE name = ?
				  AND NOT EXISTS (SELECT 1 FROM label_thumbnails WHERE label_name = ?)`, name, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("remove %s from label %q: %w", key, name, err)
		}
	}
	return nil
}
