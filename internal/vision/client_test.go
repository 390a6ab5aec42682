package vision

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.Endpoint = srv.URL + "/v1/images:annotate"
	return NewClient(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_DetectLabels_GCSSource(t *testing.T) {
	var got annotateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = io.WriteString(w, `{"responses":[{"labelAnnotations":[
			{"description":"sandy beach","score":0.97,"mid":"/m/1"},
			{"description":"sky","score":0.9}]}]}`)
	}, Options{APIKey: "secret"})

	labels, err := client.DetectLabels(t.Context(), Image{GCSURI: "gs://photos/beach.jpg"}, 5)
	require.NoError(t, err)

	require.Len(t, labels, 2)
	assert.Equal(t, "sandy beach", labels[0].Description)
	assert.Equal(t, "/m/1", labels[0].Mid)

	require.Len(t, got.Requests, 1)
	assert.Equal(t, "gs://photos/beach.jpg", got.Requests[0].Image.Source.ImageURI)
	assert.Equal(t, feature{Type: "LABEL_DETECTION", MaxResults: 5}, got.Requests[0].Features[0])
}

func TestClient_DetectLabels_InlineContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Requests[0].Image.Source)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg")), req.Requests[0].Image.Content)

		_, _ = io.WriteString(w, `{"responses":[{}]}`)
	}, Options{BearerToken: "tok"})

	labels, err := client.DetectLabels(t.Context(), Image{Content: []byte("jpeg")}, 3)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestClient_DetectLabels_Errors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		}, Options{})

		_, err := client.DetectLabels(t.Context(), Image{GCSURI: "gs://b/o.jpg"}, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrUnavailable)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("per image error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"responses":[{"error":{"code":7,"message":"denied"}}]}`)
		}, Options{})

		_, err := client.DetectLabels(t.Context(), Image{GCSURI: "gs://b/o.jpg"}, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")
	})

	t.Run("empty image", func(t *testing.T) {
		client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
			t.Fatal("no request expected")
		}, Options{})

		_, err := client.DetectLabels(t.Context(), Image{}, 5)
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestNoopDetector(t *testing.T) {
	labels, err := NoopDetector{}.DetectLabels(t.Context(), Image{GCSURI: "gs://b/o"}, 5)
	assert.NoError(t, err)
	assert.Nil(t, labels)
}
