// Package processor turns storage change notifications into album state: a news
// feed entry, a thumbnail, its reference and the label index.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/id"
	"github.com/sharedalbum/album-server/internal/media/images"
	"github.com/sharedalbum/album-server/internal/metrics"
	"github.com/sharedalbum/album-server/internal/sse"
	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
	"github.com/sharedalbum/album-server/internal/vision"
)

// DefaultMaxPhotoBytes bounds how much of an original is read to build a thumbnail.
const DefaultMaxPhotoBytes = 32 << 20

// Outcome is how a notification was handled. Every outcome except a returned
// error means the delivery can be acknowledged.
type Outcome string

// Outcomes, shared with the metrics labels.
const (
	OutcomeProcessed   Outcome = metrics.OutcomeProcessed
	OutcomeDuplicate   Outcome = metrics.OutcomeDuplicate
	OutcomeIgnored     Outcome = metrics.OutcomeIgnored
	OutcomeUnsupported Outcome = metrics.OutcomeUnsupported
)

// Indexer keeps a search index in step with stored thumbnail references.
type Indexer interface {
	IndexThumbnail(ref *domain.ThumbnailReference) error
	DeleteThumbnail(key string) error
}

// Emitter publishes activity to live clients.
type Emitter interface {
	Emit(event sse.Event)
}

// gcsURIer is implemented by buckets the vision service can read directly.
type gcsURIer interface {
	URI(object string) string
}

// Options wires an EventProcessor. Store, Photos, Thumbnails and Generator are
// required; the rest fall back to no-ops.
type Options struct {
	Store      store.Repository
	Photos     storage.Bucket
	Thumbnails storage.Bucket
	Generator  *images.Generator
	Detector   vision.Detector
	Index      Indexer
	Events     Emitter
	URLs       storage.URLBuilder
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	MaxLabels     int
	MaxPhotoBytes int64
}

// EventProcessor applies storage events to the album.
//
// Events for the same thumbnail key run one at a time: a delivery that arrives
// while another holds the key waits for it, then a repeat is recognised as a
// duplicate while a DELETE following its FINALIZE still applies. Every step is
// idempotent and the notification is recorded last, so a delivery that failed
// part way is retried in full by the next delivery.
type EventProcessor struct {
	store      store.Repository
	photos     storage.Bucket
	thumbnails storage.Bucket
	generator  *images.Generator
	detector   vision.Detector
	index      Indexer
	events     Emitter
	urls       storage.URLBuilder
	metrics    *metrics.Metrics
	logger     *slog.Logger

	maxLabels     int
	maxPhotoBytes int64
	now           func() time.Time

	keyLocks *keyLocks
}

// NewEventProcessor creates an EventProcessor.
func NewEventProcessor(opts Options) *EventProcessor {
	ep := &EventProcessor{
		store:         opts.Store,
		photos:        opts.Photos,
		thumbnails:    opts.Thumbnails,
		generator:     opts.Generator,
		detector:      opts.Detector,
		index:         opts.Index,
		events:        opts.Events,
		urls:          opts.URLs,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		maxLabels:     opts.MaxLabels,
		maxPhotoBytes: opts.MaxPhotoBytes,
		now:           time.Now,
		keyLocks:      newKeyLocks(),
	}
	if ep.detector == nil {
		ep.detector = vision.NoopDetector{}
	}
	if ep.logger == nil {
		ep.logger = slog.Default()
	}
	if ep.maxPhotoBytes <= 0 {
		ep.maxPhotoBytes = DefaultMaxPhotoBytes
	}
	return ep
}

// ProcessEvent handles one storage event.
//
// Processing flow:
//  1. Build the activity message; an empty message means the event is ignored
//  2. Derive the thumbnail key; names that are not supported photos are ignored
//  3. Wait for the thumbnail key, giving up when ctx is done
//  4. Stop if the (message, generation) notification was already recorded
//  5. FINALIZE creates the thumbnail, DELETE and ARCHIVE remove it
//  6. Record the notification and announce it
func (ep *EventProcessor) ProcessEvent(ctx context.Context, event domain.StorageEvent) (outcome Outcome, err error) {
	start := time.Now()
	defer func() {
		label := string(outcome)
		if err != nil {
			label = metrics.OutcomeFailed
		}
		ep.metrics.ObserveEvent(string(event.Type), label, time.Since(start))
	}()

	log := ep.logger.With(
		slog.String("event_type", string(event.Type)),
		slog.String("object", event.ObjectID),
		slog.String("generation", event.Generation),
		slog.String("message_id", event.MessageID),
	)

	message := event.Message()
	if message == "" {
		log.Debug("ignoring event")
		return OutcomeIgnored, nil
	}

	photo, err := domain.ParsePhotoName(event.ObjectID)
	if err != nil {
		log.Warn("ignoring unsupported object", "error", err)
		return OutcomeUnsupported, nil
	}
	key := photo.Key(event.Generation)
	log = log.With(slog.String("thumbnail_key", key))

	if err := ep.keyLocks.Lock(ctx, key); err != nil {
		return "", fmt.Errorf("wait for thumbnail key %s: %w", key, err)
	}
	defer ep.keyLocks.Unlock(key)

	exists, err := ep.store.NotificationExists(ctx, message, event.Generation)
	if err != nil {
		return "", fmt.Errorf("check notification: %w", err)
	}
	if exists {
		log.Debug("duplicate notification")
		return OutcomeDuplicate, nil
	}

	switch {
	case event.Type == domain.EventObjectFinalize:
		err = ep.handleFinalize(ctx, log, photo, key, event.Generation)
		if errors.Is(err, errors.ErrValidation) {
			log.Warn("photo could not be thumbnailed, ignoring", "error", err)
			return OutcomeUnsupported, nil
		}
	case event.Type.IsRemoval():
		err = ep.handleRemoval(ctx, log, photo, key)
	}
	if err != nil {
		log.Error("failed to process event", "error", err)
		return "", err
	}

	return ep.recordNotification(ctx, log, message, event.Generation)
}

// handleFinalize creates the thumbnail and indexes it under its labels.
func (ep *EventProcessor) handleFinalize(ctx context.Context, log *slog.Logger, photo domain.PhotoName, key, generation string) error {
	data, err := storage.ReadAll(ctx, ep.photos, photo.Name, ep.maxPhotoBytes)
	if errors.Is(err, storage.ErrObjectNotFound) {
		// Removed before we got to it; its delete event will follow.
		log.Warn("photo no longer exists, skipping thumbnail")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	thumb, err := ep.generator.Generate(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := ep.thumbnails.Write(ctx, key, thumb.Data, domain.ThumbnailContentType); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}

	labels := vision.BuildLabels(photo.Stem, ep.detectLabels(ctx, log, photo.Name, data), ep.maxLabels)
	labels = vision.AppendUnique(labels, photo.Name, photo.Stem)

	ref := &domain.ThumbnailReference{
		ThumbnailName: photo.Name,
		ThumbnailKey:  key,
		Generation:    generation,
		CreatedAt:     ep.now(),
		Labels:        labels,
		OriginalPhoto: ep.urls.OriginalPhoto(photo.Name, generation),
		BlurHash:      thumb.BlurHash,
		Width:         thumb.Width,
		Height:        thumb.Height,
	}

	// A retry may detect different labels; drop the key from labels it lost.
	previous, err := ep.store.GetThumbnail(ctx, key)
	switch {
	case err == nil:
		ref.CreatedAt = previous.CreatedAt
		stale := slices.DeleteFunc(slices.Clone(previous.Labels), ref.HasLabel)
		if err := ep.store.RemoveThumbnailFromLabels(ctx, stale, key); err != nil {
			return fmt.Errorf("remove stale labels: %w", err)
		}
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("load thumbnail reference: %w", err)
	}

	if err := ep.store.SaveThumbnail(ctx, ref); err != nil {
		return fmt.Errorf("save thumbnail reference: %w", err)
	}
	if err := ep.store.AddThumbnailToLabels(ctx, ref.Labels, key); err != nil {
		return fmt.Errorf("add to labels: %w", err)
	}

	if ep.index != nil {
		if err := ep.index.IndexThumbnail(ref); err != nil {
			log.Warn("failed to index thumbnail", "error", err)
		}
	}
	ep.emit(sse.NewThumbnailCreatedEvent(ref))

	log.Info("thumbnail created",
		"labels", len(ref.Labels),
		"width", ref.Width,
		"height", ref.Height,
	)
	return nil
}

// detectLabels asks the vision service for labels. Failures are logged and
// counted; the photo keeps its filename labels.
func (ep *EventProcessor) detectLabels(ctx context.Context, log *slog.Logger, name string, data []byte) []vision.LabelAnnotation {
	img := vision.Image{Content: data}
	if b, ok := ep.photos.(gcsURIer); ok {
		img = vision.Image{GCSURI: b.URI(name)}
	}

	annotations, err := ep.detector.DetectLabels(ctx, img, ep.maxLabels)
	if err != nil {
		ep.metrics.IncVisionFailure()
		log.Warn("label detection failed, using filename labels", "error", err)
		return nil
	}
	return annotations
}

// handleRemoval drops the thumbnail, its reference and its label entries.
func (ep *EventProcessor) handleRemoval(ctx context.Context, log *slog.Logger, photo domain.PhotoName, key string) error {
	ref, err := ep.store.GetThumbnail(ctx, key)
	switch {
	case err == nil:
		if err := ep.store.RemoveThumbnailFromLabels(ctx, ref.Labels, key); err != nil {
			return fmt.Errorf("remove from labels: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		log.Info("no thumbnail reference, skipping label cleanup")
	default:
		return fmt.Errorf("load thumbnail reference: %w", err)
	}

	if err := ep.thumbnails.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete thumbnail: %w", err)
	}
	if err := ep.store.DeleteThumbnail(ctx, key); err != nil {
		return fmt.Errorf("delete thumbnail reference: %w", err)
	}

	if ep.index != nil {
		if err := ep.index.DeleteThumbnail(key); err != nil {
			log.Warn("failed to remove thumbnail from index", "error", err)
		}
	}
	if ref != nil {
		ep.emit(sse.NewThumbnailDeletedEvent(key, photo.Name))
		log.Info("thumbnail deleted", "labels", len(ref.Labels))
	}
	return nil
}

// recordNotification stores the feed entry. Losing the insert race to another
// delivery means that delivery already did the work.
func (ep *EventProcessor) recordNotification(ctx context.Context, log *slog.Logger, message, generation string) (Outcome, error) {
	nid, err := id.Generate(id.PrefixNotification)
	if err != nil {
		return "", err
	}
	n := &domain.Notification{
		ID:         nid,
		Message:    message,
		Generation: generation,
		CreatedAt:  ep.now(),
	}

	if err := ep.store.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Debug("notification recorded concurrently")
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("record notification: %w", err)
	}

	ep.emit(sse.NewNotificationCreatedEvent(n))
	log.Info("notification recorded", "message", message)
	return OutcomeProcessed, nil
}

func (ep *EventProcessor) emit(event sse.Event) {
	if ep.events != nil {
		ep.events.Emit(event)
	}
}
