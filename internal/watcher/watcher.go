// Package watcher reports settled file changes under a directory tree using
// fsnotify, and turns the changes in a local photo bucket into storage events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a directory tree. Writes are debounced: a file is reported
// only once its size and modification time stop changing for SettleDelay.
type Watcher struct {
	logger *slog.Logger
	opts   Options
	root   string
	fsw    *fsnotify.Watcher

	mu      sync.Mutex // protects pending, known and stopped
	pending map[string]*pendingEvent
	known   map[string]struct{}
	stopped bool

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// pendingEvent tracks a file that may still be changing.
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher for root and every directory below it. Files already
// present are treated as known, so rewriting one is reported as EventModified.
func New(root string, logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		logger:  logger,
		opts:    opts,
		root:    filepath.Clean(root),
		fsw:     fsw,
		pending: make(map[string]*pendingEvent),
		known:   make(map[string]struct{}),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}

	if err := w.watchDir(w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// watchDir adds watches for dir and its subdirectories and records the files found.
func (w *Watcher) watchDir(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("failed to access %s: %w", p, err)
			}
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if p != w.root && w.ignored(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			w.mu.Lock()
			w.known[p] = struct{}{}
			w.mu.Unlock()
			return nil
		}

		if err := w.fsw.Add(p); err != nil {
			w.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}
		w.logger.Debug("added watch", "path", p)
		return nil
	})
}

func (w *Watcher) ignored(p string) bool {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return true
	}
	return w.opts.shouldIgnore(rel)
}

// Start processes file system notifications until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	go w.processEvents(ctx)

	select {
	case <-ctx.Done():
	case <-w.done:
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

func (w *Watcher) handleFsnotifyEvent(event fsnotify.Event) {
	p := event.Name
	if w.ignored(p) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if err := w.watchDir(p); err != nil {
				w.logger.Warn("failed to watch new directory", "path", p, "error", err)
			}
			return
		}
	}

	// A rename reports the old name; the new name arrives as a Create.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.cancelPendingLocked(p)
		if _, ok := w.known[p]; ok {
			delete(w.known, p)
			w.emitLocked(Event{Type: EventRemoved, Path: p})
		}
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.startSettling(p)
	}
}

// startSettling (re)starts the settle timer for p.
func (w *Watcher) startSettling(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.cancelPendingLocked(p)

	info, err := os.Stat(p)
	if err != nil {
		w.logger.Debug("file vanished before settling", "path", p, "error", err)
		return
	}
	if info.IsDir() {
		return
	}

	pending := &pendingEvent{size: info.Size(), modTime: info.ModTime()}
	pending.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(p) })
	w.pending[p] = pending
}

// checkSettled emits p once it has stopped changing.
func (w *Watcher) checkSettled(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending, ok := w.pending[p]
	if !ok || w.stopped {
		return
	}

	info, err := os.Stat(p)
	if err != nil {
		delete(w.pending, p)
		if _, known := w.known[p]; known && errors.Is(err, fs.ErrNotExist) {
			delete(w.known, p)
			w.emitLocked(Event{Type: EventRemoved, Path: p})
		}
		return
	}

	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(p) })
		return
	}

	delete(w.pending, p)

	eventType := EventAdded
	if _, known := w.known[p]; known {
		eventType = EventModified
	}
	w.known[p] = struct{}{}

	w.emitLocked(Event{
		Type:    eventType,
		Path:    p,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (w *Watcher) cancelPendingLocked(p string) {
	if pending, ok := w.pending[p]; ok {
		pending.timer.Stop()
		delete(w.pending, p)
	}
}

// emitLocked sends event unless the watcher is stopping. Callers hold mu.
func (w *Watcher) emitLocked(event Event) {
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Events returns the channel of settled changes. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of fsnotify errors. It is closed by Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		w.stopped = true
		for _, pending := range w.pending {
			pending.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fsw.Close()
		w.wg.Wait()

		close(w.events)
		close(w.errors)
	})
	return err
}
