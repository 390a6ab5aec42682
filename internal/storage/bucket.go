// Package storage provides the object buckets photos are uploaded to and
// thumbnails are written to.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/sharedalbum/album-server/internal/errors"
)

// ErrObjectNotFound is returned when an object does not exist.
var ErrObjectNotFound = errors.NotFound("object not found")

// ObjectAttrs describes a stored object.
type ObjectAttrs struct {
	Name        string
	Size        int64
	ContentType string
	Generation  int64
	Updated     time.Time
}

// Bucket is a flat namespace of objects.
type Bucket interface {
	// Name returns the bucket name.
	Name() string
	// Open returns a reader for object or ErrObjectNotFound.
	Open(ctx context.Context, object string) (io.ReadCloser, error)
	// Write stores data under object, replacing any existing content.
	Write(ctx context.Context, object string, data []byte, contentType string) error
	// Delete removes object. Deleting a missing object is not an error.
	Delete(ctx context.Context, object string) error
	// Attrs returns metadata for object or ErrObjectNotFound.
	Attrs(ctx context.Context, object string) (ObjectAttrs, error)
}

// Exists reports whether object is present in b.
func Exists(ctx context.Context, b Bucket, object string) (bool, error) {
	_, err := b.Attrs(ctx, object)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}

// ReadAll reads a whole object, failing when it exceeds limit bytes.
func ReadAll(ctx context.Context, b Bucket, object string, limit int64) ([]byte, error) {
	rc, err := b.Open(ctx, object)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "read %s/%s", b.Name(), object)
	}
	if int64(len(data)) > limit {
		return nil, errors.Validationf("object %s exceeds %d bytes", object, limit)
	}
	return data, nil
}
