package watcher

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/storage"
)

type collector struct {
	mu     sync.Mutex
	events []domain.StorageEvent
}

func (c *collector) handle(_ context.Context, ev domain.StorageEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) snapshot() []domain.StorageEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.StorageEvent(nil), c.events...)
}

func newTestSource(t *testing.T) (*BucketSource, *storage.LocalBucket, *collector) {
	t.Helper()
	bucket, err := storage.NewLocalBucket(t.TempDir(), "photos")
	require.NoError(t, err)
	c := &collector{}
	return NewBucketSource(bucket, c.handle, testLogger(), Options{SettleDelay: 30 * time.Millisecond}), bucket, c
}

func TestBucketSource_EventsFor(t *testing.T) {
	s, bucket, _ := newTestSource(t)
	path, err := bucket.Path("beach.jpg")
	require.NoError(t, err)

	t1 := time.UnixMicro(1_700_000_000_000_001)
	t2 := time.UnixMicro(1_700_000_000_000_002)

	events := s.eventsFor(Event{Type: EventAdded, Path: path, ModTime: t1})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventObjectFinalize, events[0].Type)
	assert.Equal(t, "beach.jpg", events[0].ObjectID)
	assert.Equal(t, "photos", events[0].Bucket)
	assert.Equal(t, "1700000000000001", events[0].Generation)
	assert.Contains(t, events[0].MessageID, "watch-")

	assert.Empty(t, s.eventsFor(Event{Type: EventModified, Path: path, ModTime: t1}), "same generation")

	events = s.eventsFor(Event{Type: EventModified, Path: path, ModTime: t2})
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventObjectDelete, events[0].Type)
	assert.Equal(t, "1700000000000001", events[0].Generation)
	assert.Equal(t, "1700000000000002", events[0].OverwrittenByGeneration)
	assert.Equal(t, "beach.jpg was overwritten by a newer version.", events[0].Message())
	assert.Equal(t, domain.EventObjectFinalize, events[1].Type)
	assert.Equal(t, "1700000000000001", events[1].OverwroteGeneration)

	events = s.eventsFor(Event{Type: EventRemoved, Path: path})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventObjectDelete, events[0].Type)
	assert.Equal(t, "1700000000000002", events[0].Generation)
	assert.Equal(t, "beach.jpg was deleted.", events[0].Message())

	assert.Empty(t, s.eventsFor(Event{Type: EventRemoved, Path: path}), "unknown object")
	assert.Empty(t, s.eventsFor(Event{Type: EventAdded, Path: "/elsewhere/x.jpg", ModTime: t1}))
}

func TestBucketSource_Sync(t *testing.T) {
	s, bucket, c := newTestSource(t)
	ctx := t.Context()
	require.NoError(t, bucket.Write(ctx, "rex.png", []byte("png"), "image/png"))
	require.NoError(t, bucket.Write(ctx, "summer/sea.jpg", []byte("jpg"), "image/jpeg"))

	require.NoError(t, s.Sync(ctx))
	require.NoError(t, s.Sync(ctx))

	events := c.snapshot()
	require.Len(t, events, 2, "second sync sees the same generations")
	names := []string{events[0].ObjectID, events[1].ObjectID}
	assert.ElementsMatch(t, []string{"rex.png", "summer/sea.jpg"}, names)

	attrs, err := bucket.Attrs(ctx, "rex.png")
	require.NoError(t, err)
	for _, ev := range events {
		if ev.ObjectID == "rex.png" {
			assert.Equal(t, attrs.Generation, mustParse(t, ev.Generation))
		}
	}
}

func TestBucketSource_SyncReconcilesKnownPhotos(t *testing.T) {
	s, bucket, c := newTestSource(t)
	ctx := t.Context()
	require.NoError(t, bucket.Write(ctx, "rex.png", []byte("png"), "image/png"))
	require.NoError(t, bucket.Write(ctx, "sea.jpg", []byte("jpg"), "image/jpeg"))

	rex, err := bucket.Attrs(ctx, "rex.png")
	require.NoError(t, err)
	rexGeneration := strconv.FormatInt(rex.Generation, 10)

	s.WithKnown(func(context.Context) ([]*domain.ThumbnailReference, error) {
		return []*domain.ThumbnailReference{
			{ThumbnailName: "rex.png", Generation: rexGeneration},
			{ThumbnailName: "sea.jpg", Generation: "1"},
			{ThumbnailName: "gone.png", Generation: "7"},
		}, nil
	})
	require.NoError(t, s.Sync(ctx))

	events := c.snapshot()
	require.Len(t, events, 3)

	byKey := make(map[string]domain.StorageEvent, len(events))
	for _, ev := range events {
		byKey[string(ev.Type)+" "+ev.ObjectID] = ev
	}

	gone, ok := byKey[string(domain.EventObjectDelete)+" gone.png"]
	require.True(t, ok)
	assert.Equal(t, "7", gone.Generation)
	assert.Equal(t, "gone.png was deleted.", gone.Message())

	old, ok := byKey[string(domain.EventObjectDelete)+" sea.jpg"]
	require.True(t, ok)
	assert.Equal(t, "1", old.Generation)
	assert.NotEmpty(t, old.OverwrittenByGeneration)

	replaced, ok := byKey[string(domain.EventObjectFinalize)+" sea.jpg"]
	require.True(t, ok)
	assert.Equal(t, old.OverwrittenByGeneration, replaced.Generation)
	assert.Equal(t, "1", replaced.OverwroteGeneration)

	_, ok = byKey[string(domain.EventObjectFinalize)+" rex.png"]
	assert.False(t, ok, "current photo is not announced again")

	// Deletes come before the uploads they make room for.
	assert.Equal(t, domain.EventObjectFinalize, events[2].Type)

	path, err := bucket.Path("rex.png")
	require.NoError(t, err)
	removed := s.eventsFor(Event{Type: EventRemoved, Path: path})
	require.Len(t, removed, 1, "known photo removal is announced")
	assert.Equal(t, rexGeneration, removed[0].Generation)
}

func TestBucketSource_SyncKnownFailure(t *testing.T) {
	s, bucket, c := newTestSource(t)
	ctx := t.Context()
	require.NoError(t, bucket.Write(ctx, "rex.png", []byte("png"), "image/png"))

	s.WithKnown(func(context.Context) ([]*domain.ThumbnailReference, error) {
		return nil, assert.AnError
	})
	require.NoError(t, s.Sync(ctx))

	events := c.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventObjectFinalize, events[0].Type)
}

func TestBucketSource_Run(t *testing.T) {
	s, bucket, c := newTestSource(t)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Wait for the watch to be in place.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, bucket.Write(ctx, "beach.jpg", []byte("jpeg"), "image/jpeg"))

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, domain.EventObjectFinalize, c.snapshot()[0].Type)

	require.NoError(t, bucket.Delete(ctx, "beach.jpg"))
	require.Eventually(t, func() bool { return len(c.snapshot()) == 2 }, 3*time.Second, 20*time.Millisecond)
	last := c.snapshot()[1]
	assert.Equal(t, domain.EventObjectDelete, last.Type)
	assert.Equal(t, c.snapshot()[0].Generation, last.Generation)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func mustParse(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return n
}
