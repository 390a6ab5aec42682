package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/errors"
)

func TestAlbumService_Feed(t *testing.T) {
	st := newTestStore(t)
	svc := NewAlbumService(st, testURLs, testLogger())
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range 15 {
		require.NoError(t, st.CreateNotification(ctx, &domain.Notification{
			ID:         fmt.Sprintf("ntf-%02d", i),
			Message:    fmt.Sprintf("photo%02d.jpg was uploaded.", i),
			Generation: fmt.Sprint(1000 + i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		name      string
		limit     int
		wantLen   int
		wantFirst string
	}{
		{"default", 0, 10, "ntf-14"},
		{"explicit", 3, 3, "ntf-14"},
		{"above stored", 50, 15, "ntf-14"},
		{"clamped", 1000, 15, "ntf-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := svc.Feed(ctx, tt.limit)
			require.NoError(t, err)
			require.Len(t, feed, tt.wantLen)
			assert.Equal(t, tt.wantFirst, feed[0].ID)
			for i := 1; i < len(feed); i++ {
				assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt), "newest first")
			}
		})
	}
}

func TestAlbumService_Gallery(t *testing.T) {
	st := newTestStore(t)
	svc := NewAlbumService(st, testURLs, testLogger())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedPhoto(t, st, "beach.jpg", "100", base, "beach")
	seedPhoto(t, st, "rex.png", "200", base.Add(time.Hour), "rex", "Dog")

	photos, err := svc.Gallery(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 2)

	assert.Equal(t, "rex200.png", photos[0].ThumbnailKey)
	assert.Equal(t, "http://album.test/thumbnails/rex200.png", photos[0].ThumbnailURL)
	assert.Equal(t, "http://album.test/photos/rex.png?generation=200", photos[0].OriginalURL)
	assert.Equal(t, "beach100.jpg", photos[1].ThumbnailKey)
}

func TestAlbumService_GalleryEmpty(t *testing.T) {
	svc := NewAlbumService(newTestStore(t), testURLs, testLogger())

	photos, err := svc.Gallery(context.Background())
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestAlbumService_Photo(t *testing.T) {
	st := newTestStore(t)
	svc := NewAlbumService(st, testURLs, testLogger())
	seedPhoto(t, st, "beach.jpg", "100", time.Now(), "beach")

	photo, err := svc.Photo(context.Background(), "beach100.jpg")
	require.NoError(t, err)
	assert.Equal(t, "beach.jpg", photo.ThumbnailName)

	_, err = svc.Photo(context.Background(), "missing1.jpg")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestAlbumService_SearchLabel(t *testing.T) {
	st := newTestStore(t)
	svc := NewAlbumService(st, testURLs, testLogger())
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedPhoto(t, st, "rex.png", "1", base, "rex", "Dog")
	seedPhoto(t, st, "fido.jpg", "2", base.Add(time.Minute), "fido", "Dog")
	seedPhoto(t, st, "beach.jpg", "3", base.Add(2*time.Minute), "beach")

	t.Run("most recently labelled first", func(t *testing.T) {
		photos, err := svc.SearchLabel(ctx, "Dog")
		require.NoError(t, err)
		require.Len(t, photos, 2)
		assert.Equal(t, "fido2.jpg", photos[0].ThumbnailKey)
		assert.Equal(t, "rex1.png", photos[1].ThumbnailKey)
	})

	t.Run("exact match only", func(t *testing.T) {
		photos, err := svc.SearchLabel(ctx, "dog")
		require.NoError(t, err)
		assert.Empty(t, photos)
	})

	t.Run("surrounding space ignored", func(t *testing.T) {
		photos, err := svc.SearchLabel(ctx, "  beach ")
		require.NoError(t, err)
		require.Len(t, photos, 1)
	})

	t.Run("unknown label", func(t *testing.T) {
		photos, err := svc.SearchLabel(ctx, "volcano")
		require.NoError(t, err)
		assert.NotNil(t, photos)
		assert.Empty(t, photos)
	})

	t.Run("blank term", func(t *testing.T) {
		photos, err := svc.SearchLabel(ctx, "   ")
		require.NoError(t, err)
		assert.Empty(t, photos)
	})

	t.Run("skips keys without reference", func(t *testing.T) {
		require.NoError(t, st.AddThumbnailToLabels(ctx, []string{"Dog"}, "ghost9.jpg"))
		photos, err := svc.SearchLabel(ctx, "Dog")
		require.NoError(t, err)
		assert.Len(t, photos, 2)
	})
}

func TestAlbumService_Labels(t *testing.T) {
	st := newTestStore(t)
	svc := NewAlbumService(st, testURLs, testLogger())

	seedPhoto(t, st, "rex.png", "1", time.Now(), "rex", "Dog")
	seedPhoto(t, st, "fido.jpg", "2", time.Now(), "fido", "Dog")

	labels, err := svc.Labels(context.Background())
	require.NoError(t, err)

	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		counts[l.Name] = l.Count
	}
	assert.Equal(t, map[string]int{"Dog": 2, "fido": 1, "rex": 1}, counts)
}
