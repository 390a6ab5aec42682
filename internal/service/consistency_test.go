package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/storage"
)

func TestConsistencyChecker(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	thumbs, err := storage.NewLocalBucket(t.TempDir(), "thumbnails")
	require.NoError(t, err)

	seedPhoto(t, st, "rex.png", "1", time.Now(), "rex", "Dog")
	require.NoError(t, thumbs.Write(ctx, "rex1.png", []byte("jpeg"), "image/jpeg"))

	checker := NewConsistencyChecker(st, thumbs, testLogger())

	report, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Thumbnails)
	assert.Equal(t, 2, report.Labels)

	// Break all three ways.
	seedPhoto(t, st, "fido.jpg", "2", time.Now(), "fido")
	require.NoError(t, st.AddThumbnailToLabels(ctx, []string{"Dog"}, "ghost3.jpg"))
	require.NoError(t, st.RemoveThumbnailFromLabels(ctx, []string{"rex"}, "rex1.png"))

	report, err = checker.Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"fido2.jpg"}, report.MissingObjects)
	assert.Equal(t, []LabelEntry{{Label: "Dog", Key: "ghost3.jpg"}}, report.DanglingEntries)
	assert.Equal(t, []LabelEntry{{Label: "rex", Key: "rex1.png"}}, report.MissingEntries)

	require.NoError(t, checker.Repair(ctx, report))

	report, err = checker.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.DanglingEntries)
	assert.Empty(t, report.MissingEntries)
	assert.Equal(t, []string{"fido2.jpg"}, report.MissingObjects, "objects are not regenerated")
}

func TestConsistencyChecker_WithoutBucket(t *testing.T) {
	st := newTestStore(t)
	seedPhoto(t, st, "rex.png", "1", time.Now(), "rex")

	report, err := NewConsistencyChecker(st, nil, testLogger()).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
}
