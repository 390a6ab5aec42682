package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/processor"
)

func (ts *testServer) push(t *testing.T, body []byte) int {
	t.Helper()
	resp := ts.api.Post(PushPath, "Content-Type: application/json", bytes.NewReader(body))
	return resp.Code
}

func (ts *testServer) feed(t *testing.T) []NotificationResponse {
	t.Helper()
	resp := ts.api.Get("/api/v1/notifications")
	require.Equal(t, http.StatusOK, resp.Code)
	return decodeBody[ListNotificationsResponse](t, resp.Body.Bytes()).Notifications
}

func TestReceiveMessage_FinalizeAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	ts.upload(t, "rex.png")

	finalize := pushBody(t, "OBJECT_FINALIZE", "rex.png", "1700", nil)
	assert.Equal(t, http.StatusNoContent, ts.push(t, finalize))

	feed := ts.feed(t)
	require.Len(t, feed, 1)
	assert.Equal(t, "rex.png was uploaded.", feed[0].Message)
	assert.Equal(t, "1700", feed[0].Generation)

	resp := ts.api.Get("/api/v1/photos")
	require.Equal(t, http.StatusOK, resp.Code)
	photos := decodeBody[ListPhotosResponse](t, resp.Body.Bytes()).Photos
	require.Len(t, photos, 1)
	assert.Equal(t, "rex1700.png", photos[0].ThumbnailKey)
	assert.Equal(t, "http://album.test/thumbnails/rex1700.png", photos[0].ThumbnailURL)
	assert.Equal(t, "rex", photos[0].Labels[0])
	assert.Contains(t, photos[0].Labels, "rex.png")

	resp = ts.api.Get("/api/v1/search?search-term=rex")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeBody[SearchLabelResponse](t, resp.Body.Bytes()).Photos, 1)

	resp = ts.api.Get("/thumbnails/rex1700.png")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/jpeg", resp.Header().Get("Content-Type"))
	assert.NotEmpty(t, resp.Header().Get("ETag"))

	// Redelivery is acknowledged without a second notification.
	assert.Equal(t, http.StatusNoContent, ts.push(t, finalize))
	assert.Len(t, ts.feed(t), 1)

	assert.Equal(t, http.StatusNoContent, ts.push(t, pushBody(t, "OBJECT_DELETE", "rex.png", "1700", nil)))

	feed = ts.feed(t)
	require.Len(t, feed, 2)
	assert.Equal(t, "rex.png was deleted.", feed[0].Message)

	resp = ts.api.Get("/api/v1/photos")
	assert.Empty(t, decodeBody[ListPhotosResponse](t, resp.Body.Bytes()).Photos)

	resp = ts.api.Get("/api/v1/search?search-term=rex")
	assert.Empty(t, decodeBody[SearchLabelResponse](t, resp.Body.Bytes()).Photos)

	resp = ts.api.Get("/thumbnails/rex1700.png")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReceiveMessage_Overwrite(t *testing.T) {
	ts := setupTestServer(t)
	ts.upload(t, "rex.png")

	require.Equal(t, http.StatusNoContent, ts.push(t, pushBody(t, "OBJECT_FINALIZE", "rex.png", "1", nil)))
	require.Equal(t, http.StatusNoContent, ts.push(t, pushBody(t, "OBJECT_ARCHIVE", "rex.png", "1",
		map[string]string{"overwrittenByGeneration": "2"})))
	require.Equal(t, http.StatusNoContent, ts.push(t, pushBody(t, "OBJECT_FINALIZE", "rex.png", "2",
		map[string]string{"overwroteGeneration": "1"})))

	feed := ts.feed(t)
	require.Len(t, feed, 3)
	assert.Equal(t, "rex.png was uploaded and overwrote an older version of itself.", feed[0].Message)
	assert.Equal(t, "rex.png was overwritten by a newer version.", feed[1].Message)

	resp := ts.api.Get("/api/v1/photos")
	photos := decodeBody[ListPhotosResponse](t, resp.Body.Bytes()).Photos
	require.Len(t, photos, 1)
	assert.Equal(t, "rex2.png", photos[0].ThumbnailKey)
}

func TestReceiveMessage_MetadataUpdateIgnored(t *testing.T) {
	ts := setupTestServer(t)

	code := ts.push(t, pushBody(t, "OBJECT_METADATA_UPDATE", "rex.png", "1", nil))
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, ts.feed(t))
}

func TestReceiveMessage_URLEncodedBody(t *testing.T) {
	ts := setupTestServer(t)
	ts.upload(t, "beach party.png")

	body := url.PathEscape(string(pushBody(t, "OBJECT_FINALIZE", "beach party.png", "5", nil))) + "="
	resp := ts.api.Post(PushPath, "Content-Type: application/x-www-form-urlencoded", bytes.NewReader([]byte(body)))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	feed := ts.feed(t)
	require.Len(t, feed, 1)
	assert.Equal(t, "beach party.png was uploaded.", feed[0].Message)
}

func TestReceiveMessage_Malformed(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("definitely not an envelope")},
		{"missing generation", pushBody(t, "OBJECT_FINALIZE", "rex.png", "", nil)},
		{"non numeric generation", pushBody(t, "OBJECT_FINALIZE", "rex.png", "abc", nil)},
		{"missing object", pushBody(t, "OBJECT_FINALIZE", "", "1", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(PushPath, "Content-Type: application/json", bytes.NewReader(tt.body))
			assert.Equal(t, http.StatusBadRequest, resp.Code)

			apiErr := decodeBody[map[string]any](t, resp.Body.Bytes())
			assert.Equal(t, "VALIDATION", apiErr["code"])
		})
	}
	assert.Empty(t, ts.feed(t))
}

type failingProcessor struct{}

func (failingProcessor) ProcessEvent(context.Context, domain.StorageEvent) (processor.Outcome, error) {
	return "", fmt.Errorf("thumbnail bucket unreachable")
}

func TestReceiveMessage_ProcessingFailureAsksForRedelivery(t *testing.T) {
	ts := setupTestServer(t, func(d *Deps) { d.Processor = failingProcessor{} })

	resp := ts.api.Post(PushPath, "Content-Type: application/json",
		bytes.NewReader(pushBody(t, "OBJECT_FINALIZE", "rex.png", "1", nil)))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)

	apiErr := decodeBody[map[string]any](t, resp.Body.Bytes())
	assert.Equal(t, "INTERNAL", apiErr["code"])
}
