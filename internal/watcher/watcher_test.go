package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(root, testLogger(), Options{SettleDelay: 30 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), testLogger(), Options{})
	assert.Error(t, err)
}

func TestWatcher_AddModifyRemove(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	p := filepath.Join(root, "beach.jpg")
	require.NoError(t, os.WriteFile(p, []byte("first"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, p, ev.Path)
	assert.Equal(t, int64(5), ev.Size)
	assert.False(t, ev.ModTime.IsZero())

	require.NoError(t, os.WriteFile(p, []byte("second version"), 0o644))
	ev = nextEvent(t, w)
	assert.Equal(t, EventModified, ev.Type)
	assert.Equal(t, int64(14), ev.Size)

	require.NoError(t, os.Remove(p))
	ev = nextEvent(t, w)
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, p, ev.Path)
}

func TestWatcher_ExistingFileIsKnown(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "rex.png")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	w := startWatcher(t, root)
	require.NoError(t, os.Remove(p))

	ev := nextEvent(t, w)
	assert.Equal(t, EventRemoved, ev.Type)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	dir := filepath.Join(root, "summer")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// Give the watcher a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)

	p := filepath.Join(dir, "sea.jpg")
	require.NoError(t, os.WriteFile(p, []byte("sea"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, p, ev.Path)
}

func TestWatcher_IgnoresTempFiles(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "upload.jpg.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.jpg"), []byte("y"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, filepath.Join(root, "real.jpg"), ev.Path)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), testLogger(), Options{})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open)
}
