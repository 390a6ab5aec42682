package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/store"
)

const thumbnailColumns = `thumbnail_key, thumbnail_name, generation, created_at, labels,
	original_photo, blur_hash, width, height`

func scanThumbnail(scanner interface{ Scan(dest ...any) error }) (*domain.ThumbnailReference, error) {
	var (
		r         domain.ThumbnailReference
		createdAt string
		labels    string
		blurHash  sql.NullString
	)
	err := scanner.Scan(
		&r.ThumbnailKey,
		&r.ThumbnailName,
		&r.Generation,
		&createdAt,
		&labels,
		&r.OriginalPhoto,
		&blurHash,
		&r.Width,
		&r.Height,
	)
	if err != nil {
		return nil, err
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labels), &r.Labels); err != nil {
		return nil, fmt.Errorf("decode labels of %s: %w", r.ThumbnailKey, err)
	}
	r.BlurHash = blurHash.String
	return &r, nil
}

// SaveThumbnail inserts or replaces the reference stored under its key.
func (s *Store) SaveThumbnail(ctx context.Context, ref *domain.ThumbnailReference) error {
	if ref.ThumbnailKey == "" {
		return store.ErrInvalidInput.WithMessage("thumbnail key is required")
	}
	labels := ref.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thumbnails (`+thumbnailColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (thumbnail_key) DO UPDATE SET
			thumbnail_name = excluded.thumbnail_name,
			generation     = excluded.generation,
			created_at     = excluded.created_at,
			labels         = excluded.labels,
			original_photo = excluded.original_photo,
			blur_hash      = excluded.blur_hash,
			width          = excluded.width,
			height         = excluded.height`,
		ref.ThumbnailKey,
		ref.ThumbnailName,
		ref.Generation,
		formatTime(ref.CreatedAt),
		string(labelsJSON),
		ref.OriginalPhoto,
		nullString(ref.BlurHash),
		ref.Width,
		ref.Height,
	)
	if err != nil {
		return fmt.Errorf("save thumbnail %s: %w", ref.ThumbnailKey, err)
	}
	return nil
}

// GetThumbnail returns the reference for key or store.ErrNotFound.
func (s *Store) GetThumbnail(ctx context.Context, key string) (*domain.ThumbnailReference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+thumbnailColumns+` FROM thumbnails WHERE thumbnail_key = ?`, key)

	ref, err := scanThumbnail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return ref, err
}

// DeleteThumbnail removes the reference for key if present.
func (s *Store) DeleteThumbnail(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE thumbnail_key = ?`, key)
	return err
}

// ListThumbnails returns every reference, newest first.
func (s *Store) ListThumbnails(ctx context.Context) ([]*domain.ThumbnailReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+thumbnailColumns+` FROM thumbnails ORDER BY created_at DESC, thumbnail_key DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.ThumbnailReference{}
	for rows.Next() {
		ref, err := scanThumbnail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// CountThumbnails returns the number of stored references.
func (s *Store) CountThumbnails(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thumbnails`).Scan(&n)
	return n, err
}
