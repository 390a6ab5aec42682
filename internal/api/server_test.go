package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/media/images"
	"github.com/sharedalbum/album-server/internal/metrics"
	"github.com/sharedalbum/album-server/internal/processor"
	"github.com/sharedalbum/album-server/internal/search"
	"github.com/sharedalbum/album-server/internal/service"
	"github.com/sharedalbum/album-server/internal/sse"
	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
)

// testServer wraps the API server with handles on its collaborators.
type testServer struct {
	*Server
	api        humatest.TestAPI
	store      *store.Store
	photos     *storage.LocalBucket
	thumbnails *storage.LocalBucket
	index      *search.Index
	registry   *prometheus.Registry
}

// setupTestServer creates a server over a temporary badger store, local buckets
// and a real event processor. mutate may adjust the dependencies before the
// server is built.
func setupTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	photos, err := storage.NewLocalBucket(filepath.Join(dir, "buckets"), "photos")
	require.NoError(t, err)
	thumbnails, err := storage.NewLocalBucket(filepath.Join(dir, "buckets"), "thumbnails")
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(registry)
	urls := storage.URLBuilder{PublicURL: "http://album.test", PhotoBucket: "photos"}
	sseManager := sse.NewManager(logger)

	ep := processor.NewEventProcessor(processor.Options{
		Store:      st,
		Photos:     photos,
		Thumbnails: thumbnails,
		Generator:  images.NewGenerator(logger),
		Index:      index,
		Events:     sseManager,
		URLs:       urls,
		Metrics:    m,
		Logger:     logger,
		MaxLabels:  5,
	})

	deps := Deps{
		Store: st,
		Services: &Services{
			Album:  service.NewAlbumService(st, urls, logger),
			Search: service.NewSearchService(index, st, logger),
		},
		Processor:  ep,
		Thumbnails: thumbnails,
		Photos:     photos,
		SSEManager: sseManager,
		Metrics:    m,
		Gatherer:   registry,
		Logger:     logger,
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	s := NewServer(deps)
	return &testServer{
		Server:     s,
		api:        humatest.Wrap(t, s.API()),
		store:      st,
		photos:     photos,
		thumbnails: thumbnails,
		index:      index,
		registry:   registry,
	}
}

// upload writes a small PNG into the photo bucket.
func (ts *testServer) upload(t *testing.T, name string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, ts.photos.Write(context.Background(), name, buf.Bytes(), "image/png"))
}

// pushBody builds a Pub/Sub push envelope.
func pushBody(t *testing.T, eventType, object, generation string, extra map[string]string) []byte {
	t.Helper()
	attrs := map[string]string{
		"eventType":        eventType,
		"objectId":         object,
		"bucketId":         "photos",
		"objectGeneration": generation,
		"payloadFormat":    "JSON_API_V1",
	}
	for k, v := range extra {
		attrs[k] = v
	}
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"attributes":  attrs,
			"messageId":   "msg-" + generation,
			"publishTime": "2024-05-01T12:00:00Z",
		},
		"subscription": "projects/album/subscriptions/photos",
	})
	require.NoError(t, err)
	return body
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}
