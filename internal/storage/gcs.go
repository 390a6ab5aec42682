package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSBucket is a Google Cloud Storage bucket.
type GCSBucket struct {
	handle *gcs.BucketHandle
	name   string
}

// NewGCSBucket wraps a bucket of an existing client.
func NewGCSBucket(client *gcs.Client, name string) *GCSBucket {
	return &GCSBucket{handle: client.Bucket(name), name: name}
}

// Name implements Bucket.
func (b *GCSBucket) Name() string { return b.name }

// URI returns the gs:// URI of object.
func (b *GCSBucket) URI(object string) string {
	return "gs://" + b.name + "/" + object
}

// Open implements Bucket.
func (b *GCSBucket) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	r, err := b.handle.Object(object).NewReader(ctx)
	if err != nil {
		return nil, translateGCSError(err, "open", object)
	}
	return r, nil
}

// Write implements Bucket.
func (b *GCSBucket) Write(ctx context.Context, object string, data []byte, contentType string) error {
	w := b.handle.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", b.name, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit gs://%s/%s: %w", b.name, object, err)
	}
	return nil
}

// Delete implements Bucket.
func (b *GCSBucket) Delete(ctx context.Context, object string) error {
	err := b.handle.Object(object).Delete(ctx)
	if err != nil && !stderrors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", b.name, object, err)
	}
	return nil
}

// Attrs implements Bucket.
func (b *GCSBucket) Attrs(ctx context.Context, object string) (ObjectAttrs, error) {
	attrs, err := b.handle.Object(object).Attrs(ctx)
	if err != nil {
		return ObjectAttrs{}, translateGCSError(err, "stat", object)
	}
	return ObjectAttrs{
		Name:        attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Generation:  attrs.Generation,
		Updated:     attrs.Updated,
	}, nil
}

func translateGCSError(err error, op, object string) error {
	if stderrors.Is(err, gcs.ErrObjectNotExist) {
		return ErrObjectNotFound.WithCause(err)
	}
	return fmt.Errorf("%s %s: %w", op, object, err)
}
