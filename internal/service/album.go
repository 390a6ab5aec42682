// Package service implements the read side of the album: the news feed, the
// gallery, label search and the full-text index kept beside the store.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/normalize"
	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
)

// MaxNotificationLimit bounds a single news feed request.
const MaxNotificationLimit = 100

// Photo is a thumbnail reference with the URLs a client needs to show it.
type Photo struct {
	*domain.ThumbnailReference
	ThumbnailURL string
	OriginalURL  string
}

// LabelCount is a label and how many thumbnails carry it.
type LabelCount struct {
	Name  string
	Count int
}

// AlbumService answers the read-only album views.
type AlbumService struct {
	store  store.Repository
	urls   storage.URLBuilder
	logger *slog.Logger
}

// NewAlbumService creates an AlbumService.
func NewAlbumService(st store.Repository, urls storage.URLBuilder, logger *slog.Logger) *AlbumService {
	return &AlbumService{
		store:  st,
		urls:   urls,
		logger: logger,
	}
}

// Feed returns the most recent notifications, newest first. A non-positive
// limit selects the default feed length.
func (s *AlbumService) Feed(ctx context.Context, limit int) ([]*domain.Notification, error) {
	limit = store.ClampLimit(limit, MaxNotificationLimit)

	notifications, err := s.store.ListRecentNotifications(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// Gallery returns every photo, newest first.
func (s *AlbumService) Gallery(ctx context.Context) ([]Photo, error) {
	refs, err := s.store.ListThumbnails(ctx)
	if err != nil {
		return nil, fmt.Errorf("list thumbnails: %w", err)
	}

	photos := make([]Photo, 0, len(refs))
	for _, ref := range refs {
		photos = append(photos, s.photo(ref))
	}
	return photos, nil
}

// Photo returns a single photo by thumbnail key.
func (s *AlbumService) Photo(ctx context.Context, key string) (Photo, error) {
	ref, err := s.store.GetThumbnail(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Photo{}, errors.NotFoundf("photo %q not found", key)
		}
		return Photo{}, fmt.Errorf("get thumbnail: %w", err)
	}
	return s.photo(ref), nil
}

// SearchLabel returns the photos carrying exactly term, most recently labelled
// first. An unknown or blank term yields an empty result.
func (s *AlbumService) SearchLabel(ctx context.Context, term string) ([]Photo, error) {
	term = normalize.Label(term)
	if term == "" {
		return []Photo{}, nil
	}

	label, err := s.store.GetLabel(ctx, term)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []Photo{}, nil
		}
		return nil, fmt.Errorf("get label: %w", err)
	}

	keys := label.NewestFirst()
	photos := make([]Photo, 0, len(keys))
	for _, key := range keys {
		ref, err := s.store.GetThumbnail(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("label references missing thumbnail", "label", term, "key", key)
				continue
			}
			return nil, fmt.Errorf("get thumbnail %s: %w", key, err)
		}
		photos = append(photos, s.photo(ref))
	}
	return photos, nil
}

// Labels returns every label with the number of thumbnails carrying it, ordered by name.
func (s *AlbumService) Labels(ctx context.Context) ([]LabelCount, error) {
	labels, err := s.store.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	counts := make([]LabelCount, 0, len(labels))
	for _, l := range labels {
		counts = append(counts, LabelCount{Name: l.Name, Count: len(l.ThumbnailKeys)})
	}
	return counts, nil
}

func (s *AlbumService) photo(ref *domain.ThumbnailReference) Photo {
	original := ref.OriginalPhoto
	if original == "" {
		original = s.urls.OriginalPhoto(ref.ThumbnailName, ref.Generation)
	}
	return Photo{
		ThumbnailReference: ref,
		ThumbnailURL:       s.urls.Thumbnail(ref.ThumbnailKey),
		OriginalURL:        original,
	}
}

// ThumbnailURL returns the URL serving the thumbnail stored under key.
func (s *AlbumService) ThumbnailURL(key string) string {
	return s.urls.Thumbnail(key)
}
