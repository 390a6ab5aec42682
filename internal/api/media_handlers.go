package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/http/response"
	"github.com/sharedalbum/album-server/internal/storage"
)

// registerMediaRoutes mounts the byte routes. They bypass huma since they stream
// images rather than JSON.
func (s *Server) registerMediaRoutes() {
	if s.thumbnails != nil {
		s.router.Get("/thumbnails/*", s.handleGetThumbnail)
	}
	if s.photos != nil {
		s.router.Get("/photos/*", s.handleGetOriginalPhoto)
	}
}

// handleGetThumbnail serves thumbnail bytes. A thumbnail key embeds its photo
// generation, so the response is cacheable forever.
func (s *Server) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	key, err := objectParam(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.serveObject(w, r, s.thumbnails, key, domain.ThumbnailContentType, CacheImmutable, "")
}

// handleGetOriginalPhoto serves an original photo from a local bucket. When a
// generation is requested it must still be the live one.
func (s *Server) handleGetOriginalPhoto(w http.ResponseWriter, r *http.Request) {
	name, err := objectParam(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	photo, err := domain.ParsePhotoName(name)
	if err != nil {
		response.NotFound(w, "photo not found", s.logger)
		return
	}
	s.serveObject(w, r, s.photos, name, photo.ContentType(), CacheOneHour, r.URL.Query().Get("generation"))
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, bucket storage.Bucket, object, contentType, cacheControl, generation string) {
	ctx := r.Context()

	attrs, err := bucket.Attrs(ctx, object)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if generation != "" && generation != strconv.FormatInt(attrs.Generation, 10) {
		response.NotFound(w, "generation is not live", s.logger)
		return
	}

	etag := fmt.Sprintf(`"%d-%d"`, attrs.Generation, attrs.Size)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", cacheControl)

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	rc, err := bucket.Open(ctx, object)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attrs.Size, 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("object stream interrupted", "object", object, "error", err)
	}
}

// objectParam returns the unescaped object name captured by the route wildcard.
// The router matches against RawPath when it is set, and against the already
// decoded Path otherwise.
func objectParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			return "", errors.Validationf("invalid object name %q", name)
		}
		name = unescaped
	}
	if name == "" {
		return "", errors.NotFound("object not found")
	}
	return name, nil
}

// etagMatches implements the If-None-Match comparison, including lists and "*".
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
