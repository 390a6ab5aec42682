package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/id"
	"github.com/sharedalbum/album-server/internal/storage"
)

// Handler consumes a synthesised storage event.
type Handler func(ctx context.Context, event domain.StorageEvent) error

// KnownFunc lists the photos processed in earlier runs.
type KnownFunc func(ctx context.Context) ([]*domain.ThumbnailReference, error)

// BucketSource stands in for Pub/Sub notifications during local development:
// it watches a LocalBucket and produces the events the object storage service
// would publish. Generations are modification times in microseconds, matching
// LocalBucket.Attrs.
type BucketSource struct {
	bucket *storage.LocalBucket
	handle Handler
	known  KnownFunc
	logger *slog.Logger
	opts   Options

	mu          sync.Mutex
	generations map[string]string // object name -> live generation
}

// NewBucketSource creates a source for bucket delivering events to handle.
func NewBucketSource(bucket *storage.LocalBucket, handle Handler, logger *slog.Logger, opts Options) *BucketSource {
	opts.setDefaults()
	return &BucketSource{
		bucket:      bucket,
		handle:      handle,
		logger:      logger.With("bucket", bucket.Name()),
		opts:        opts,
		generations: make(map[string]string),
	}
}

// WithKnown makes Sync reconcile the bucket against the photos known returns,
// so changes made while nothing was watching are announced.
func (s *BucketSource) WithKnown(known KnownFunc) *BucketSource {
	s.known = known
	return s
}

// Run announces every object already in the bucket, then follows changes until
// ctx is cancelled. Handler errors are logged; there is no redelivery.
func (s *BucketSource) Run(ctx context.Context) error {
	w, err := New(s.bucket.Dir(), s.logger, s.opts)
	if err != nil {
		return err
	}
	defer w.Stop()

	go func() {
		_ = w.Start(ctx)
	}()

	if err := s.Sync(ctx); err != nil {
		s.logger.Warn("initial bucket sync failed", "error", err)
	}

	s.logger.Info("watching local bucket", "path", s.bucket.Dir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			s.logger.Warn("bucket watcher error", "error", err)
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			s.dispatch(ctx, s.eventsFor(ev))
		}
	}
}

// Sync emits OBJECT_FINALIZE for every object in the bucket. Objects processed
// before are recognised as duplicates downstream. With a KnownFunc, known
// photos that are gone or carry another generation get an OBJECT_DELETE first.
func (s *BucketSource) Sync(ctx context.Context) error {
	names, err := s.bucket.List(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]string, len(names))
	listed := make([]string, 0, len(names))
	for _, name := range names {
		if s.opts.shouldIgnore(filepath.FromSlash(name)) {
			continue
		}
		attrs, err := s.bucket.Attrs(ctx, name)
		if err != nil {
			s.logger.Warn("failed to stat object", "object", name, "error", err)
			continue
		}
		live[name] = strconv.FormatInt(attrs.Generation, 10)
		listed = append(listed, name)
	}

	overwrote := s.reconcile(ctx, live)

	for _, name := range listed {
		events := s.observe(name, live[name])
		if previous, ok := overwrote[name]; ok && len(events) == 1 {
			events[0].OverwroteGeneration = previous
		}
		s.dispatch(ctx, events)
	}
	return nil
}

// reconcile deletes known photos missing from live or replaced there, and
// marks the ones still current as observed. It returns the replaced
// generations by name.
func (s *BucketSource) reconcile(ctx context.Context, live map[string]string) map[string]string {
	if s.known == nil {
		return nil
	}
	refs, err := s.known(ctx)
	if err != nil {
		s.logger.Warn("failed to list known photos, skipping reconcile", "error", err)
		return nil
	}

	overwrote := make(map[string]string)
	var stale []domain.StorageEvent
	for _, ref := range refs {
		if s.opts.shouldIgnore(filepath.FromSlash(ref.ThumbnailName)) {
			continue
		}
		current, exists := live[ref.ThumbnailName]
		if current == ref.Generation {
			s.mu.Lock()
			if _, seen := s.generations[ref.ThumbnailName]; !seen {
				s.generations[ref.ThumbnailName] = current
			}
			s.mu.Unlock()
			continue
		}

		deleted := s.event(domain.EventObjectDelete, ref.ThumbnailName, ref.Generation)
		if exists {
			deleted.OverwrittenByGeneration = current
			overwrote[ref.ThumbnailName] = ref.Generation
		}
		stale = append(stale, deleted)
	}

	if len(stale) > 0 {
		s.logger.Info("reconciling photos changed while unwatched", "count", len(stale))
	}
	s.dispatch(ctx, stale)
	return overwrote
}

// eventsFor converts a settled file change into storage events.
func (s *BucketSource) eventsFor(ev Event) []domain.StorageEvent {
	name, ok := s.bucket.ObjectName(ev.Path)
	if !ok {
		return nil
	}

	if ev.Type == EventRemoved {
		s.mu.Lock()
		generation, known := s.generations[name]
		delete(s.generations, name)
		s.mu.Unlock()

		if !known {
			s.logger.Debug("removed object was never announced", "object", name)
			return nil
		}
		return []domain.StorageEvent{s.event(domain.EventObjectDelete, name, generation)}
	}

	return s.observe(name, strconv.FormatInt(ev.ModTime.UnixMicro(), 10))
}

// observe records generation as live for name. Replacing an older generation
// yields the delete/finalize pair the storage service publishes for overwrites.
func (s *BucketSource) observe(name, generation string) []domain.StorageEvent {
	s.mu.Lock()
	previous := s.generations[name]
	s.generations[name] = generation
	s.mu.Unlock()

	switch previous {
	case generation:
		return nil
	case "":
		return []domain.StorageEvent{s.event(domain.EventObjectFinalize, name, generation)}
	}

	deleted := s.event(domain.EventObjectDelete, name, previous)
	deleted.OverwrittenByGeneration = generation
	finalized := s.event(domain.EventObjectFinalize, name, generation)
	finalized.OverwroteGeneration = previous
	return []domain.StorageEvent{deleted, finalized}
}

func (s *BucketSource) event(t domain.EventType, name, generation string) domain.StorageEvent {
	return domain.StorageEvent{
		Type:       t,
		ObjectID:   name,
		Bucket:     s.bucket.Name(),
		Generation: generation,
		MessageID:  id.MessageID(),
	}
}

func (s *BucketSource) dispatch(ctx context.Context, events []domain.StorageEvent) {
	for _, ev := range events {
		if err := s.handle(ctx, ev); err != nil {
			s.logger.Error("failed to handle local storage event",
				"event_type", ev.Type,
				"object", ev.ObjectID,
				"generation", ev.Generation,
				"error", err,
			)
		}
	}
}
