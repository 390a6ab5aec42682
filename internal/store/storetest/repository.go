// Package storetest holds a behavioural test suite every store.Repository
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/store"
)

// Factory opens an empty repository for one test.
type Factory func(t *testing.T) store.Repository

// Run exercises every Repository operation against repositories from newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("NotificationDedup", func(t *testing.T) { testNotificationDedup(t, newRepo(t)) })
	t.Run("NotificationRace", func(t *testing.T) { testNotificationRace(t, newRepo(t)) })
	t.Run("RecentNotifications", func(t *testing.T) { testRecentNotifications(t, newRepo(t)) })
	t.Run("ThumbnailLifecycle", func(t *testing.T) { testThumbnailLifecycle(t, newRepo(t)) })
	t.Run("ThumbnailsNewestFirst", func(t *testing.T) { testThumbnailsNewestFirst(t, newRepo(t)) })
	t.Run("SubSecondOrder", func(t *testing.T) { testSubSecondOrder(t, newRepo(t)) })
	t.Run("LabelAddRemove", func(t *testing.T) { testLabelAddRemove(t, newRepo(t)) })
	t.Run("LabelConcurrentAdds", func(t *testing.T) { testLabelConcurrentAdds(t, newRepo(t)) })
}

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func notification(id, message, generation string, at time.Time) *domain.Notification {
	return &domain.Notification{ID: id, Message: message, Generation: generation, CreatedAt: at}
}

func testNotificationDedup(t *testing.T, repo store.Repository) {
	ctx := t.Context()

	exists, err := repo.NotificationExists(ctx, "a.jpg was uploaded.", "1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.CreateNotification(ctx, notification("ntf-1", "a.jpg was uploaded.", "1", base)))

	exists, err = repo.NotificationExists(ctx, "a.jpg was uploaded.", "1")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.CreateNotification(ctx, notification("ntf-2", "a.jpg was uploaded.", "1", base.Add(time.Second)))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	// Same message for another generation is a new notification.
	require.NoError(t, repo.CreateNotification(ctx, notification("ntf-3", "a.jpg was uploaded.", "2", base.Add(2*time.Second))))

	// Same generation, different event.
	require.NoError(t, repo.CreateNotification(ctx, notification("ntf-4", "a.jpg was deleted.", "1", base.Add(3*time.Second))))

	recent, err := repo.ListRecentNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func testNotificationRace(t *testing.T, repo store.Repository) {
	ctx := t.Context()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateNotification(ctx, notification(fmt.Sprintf("ntf-%d", i), "b.jpg was uploaded.", "9", base))
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, store.ErrAlreadyExists)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func testRecentNotifications(t *testing.T, repo store.Repository) {
	ctx := t.Context()

	for i := range 15 {
		n := notification(fmt.Sprintf("ntf-%02d", i), fmt.Sprintf("p%d.jpg was uploaded.", i), "1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.CreateNotification(ctx, n))
	}

	recent, err := repo.ListRecentNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "p14.jpg was uploaded.", recent[0].Message)
	assert.Equal(t, "p5.jpg was uploaded.", recent[9].Message)

	all, err := repo.ListRecentNotifications(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 15)

	defaulted, err := repo.ListRecentNotifications(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, defaulted, store.DefaultNotificationLimit)
}

func reference(name, generation string, at time.Time, labels ...string) *domain.ThumbnailReference {
	key, err := domain.ThumbnailKey(name, generation)
	if err != nil {
		panic(err)
	}
	return &domain.ThumbnailReference{
		ThumbnailName: name,
		ThumbnailKey:  key,
		Generation:    generation,
		CreatedAt:     at,
		Labels:        labels,
		OriginalPhoto: "https://storage.googleapis.com/photos/" + name + "?generation=" + generation,
		BlurHash:      "LKO2?U%2Tw=w",
		Width:         180,
		Height:        120,
	}
}

func testThumbnailLifecycle(t *testing.T, repo store.Repository) {
	ctx := t.Context()

	_, err := repo.GetThumbnail(ctx, "beach1.jpg")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ref := reference("beach.jpg", "1", base, "beach", "sand")
	require.NoError(t, repo.SaveThumbnail(ctx, ref))

	got, err := repo.GetThumbnail(ctx, "beach1.jpg")
	require.NoError(t, err)
	assert.Equal(t, ref.ThumbnailName, got.ThumbnailName)
	assert.Equal(t, ref.Labels, got.Labels)
	assert.Equal(t, ref.OriginalPhoto, got.OriginalPhoto)
	assert.Equal(t, ref.BlurHash, got.BlurHash)
	assert.Equal(t, 180, got.Width)
	assert.True(t, ref.CreatedAt.Equal(got.CreatedAt))

	// Upsert replaces.
	ref.Labels = []string{"beach"}
	require.NoError(t, repo.SaveThumbnail(ctx, ref))
	got, err = repo.GetThumbnail(ctx, "beach1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"beach"}, got.Labels)

	count, err := repo.CountThumbnails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.DeleteThumbnail(ctx, "beach1.jpg"))
	require.NoError(t, repo.DeleteThumbnail(ctx, "beach1.jpg"))

	_, err = repo.GetThumbnail(ctx, "beach1.jpg")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testThumbnailsNewestFirst(t *testing.T, repo store.Repository) {
	ctx := t.Context()

	require.NoError(t, repo.SaveThumbnail(ctx, reference("a.jpg", "1", base)))
	require.NoError(t, repo.SaveThumbnail(ctx, reference("c.jpg", "1", base.Add(2*time.Hour))))
	require.NoError(t, repo.SaveThumbnail(ctx, reference("b.jpg", "1", base.Add(time.Hour))))

	all, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c1.jpg", "b1.jpg", "a1.jpg"}, []string{all[0].ThumbnailKey, all[1].ThumbnailKey, all[2].ThumbnailKey})
}

// testSubSecondOrder covers timestamps within one second whose fractions differ
// in length, including a whole second.
func testSubSecondOrder(t *testing.T, repo store.Repository) {
	ctx := t.Context()
	stamps := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Second + 5*time.Microsecond),
	}
	names := []string{"a", "b", "c", "d", "e"}

	for i, at := range stamps {
		n := notification("ntf-"+names[i], names[i]+".jpg was uploaded.", "1", at)
		require.NoError(t, repo.CreateNotification(ctx, n))
		require.NoError(t, repo.SaveThumbnail(ctx, reference(names[i]+".jpg", "1", at)))
	}

	recent, err := repo.ListRecentNotifications(ctx, 10)
	require.NoError(t, err)
	gotMessages := make([]string, 0, len(recent))
	for _, n := range recent {
		gotMessages = append(gotMessages, n.Message)
	}
	assert.Equal(t, []string{
		"e.jpg was uploaded.",
		"d.jpg was uploaded.",
		"c.jpg was uploaded.",
		"b.jpg was uploaded.",
		"a.jpg was uploaded.",
	}, gotMessages)
	assert.True(t, stamps[2].Equal(recent[2].CreatedAt))

	refs, err := repo.ListThumbnails(ctx)
	require.NoError(t, err)
	gotKeys := make([]string, 0, len(refs))
	for _, r := range refs {
		gotKeys = append(gotKeys, r.ThumbnailKey)
	}
	assert.Equal(t, []string{"e1.jpg", "d1.jpg", "c1.jpg", "b1.jpg", "a1.jpg"}, gotKeys)
}

func testLabelAddRemove(t *testing.T, repo store.Repository) {
	ctx := t.Context()

	_, err := repo.GetLabel(ctx, "beach")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.AddThumbnailToLabels(ctx, []string{"beach", "sky"}, "a1.jpg"))
	require.NoError(t, repo.AddThumbnailToLabels(ctx, []string{"beach"}, "b1.jpg"))
	require.NoError(t, repo.AddThumbnailToLabels(ctx, []string{"beach"}, "a1.jpg"))

	beach, err := repo.GetLabel(ctx, "beach")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1.jpg", "b1.jpg"}, beach.ThumbnailKeys)

	labels, err := repo.ListLabels(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "beach", labels[0].Name)
	assert.Equal(t, "sky", labels[1].Name)

	require.NoError(t, repo.RemoveThumbnailFromLabels(ctx, []string{"beach", "sky", "missing"}, "a1.jpg"))

	beach, err = repo.GetLabel(ctx, "beach")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1.jpg"}, beach.ThumbnailKeys)

	_, err = repo.GetLabel(ctx, "sky")
	assert.ErrorIs(t, err, store.ErrNotFound, "empty label is deleted")

	require.NoError(t, repo.RemoveThumbnailFromLabels(ctx, []string{"beach"}, "b1.jpg"))
	labels, err = repo.ListLabels(ctx)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func testLabelConcurrentAdds(t *testing.T, repo store.Repository) {
	ctx := context.WithoutCancel(t.Context())

	const workers = 10
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AddThumbnailToLabels(ctx, []string{"dog"}, fmt.Sprintf("dog%d.jpg", i)))
		}()
	}
	wg.Wait()

	dog, err := repo.GetLabel(ctx, "dog")
	require.NoError(t, err)
	assert.Len(t, dog.ThumbnailKeys, workers)
}
