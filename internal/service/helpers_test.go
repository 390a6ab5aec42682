package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
)

var testURLs = storage.URLBuilder{PublicURL: "http://album.test", PhotoBucket: "photos"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// seedPhoto stores a reference the way the event processor does: reference
// first, then one label entry per label.
func seedPhoto(t *testing.T, st store.Repository, name, generation string, createdAt time.Time, labels ...string) *domain.ThumbnailReference {
	t.Helper()
	ctx := context.Background()

	key, err := domain.ThumbnailKey(name, generation)
	require.NoError(t, err)

	ref := &domain.ThumbnailReference{
		ThumbnailName: name,
		ThumbnailKey:  key,
		Generation:    generation,
		CreatedAt:     createdAt,
		Labels:        labels,
		OriginalPhoto: testURLs.OriginalPhoto(name, generation),
	}
	require.NoError(t, st.SaveThumbnail(ctx, ref))
	require.NoError(t, st.AddThumbnailToLabels(ctx, labels, key))
	return ref
}
