package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sharedalbum/album-server/internal/errors"
)

// LocalBucket stores objects as files under a directory. Object names may contain
// slashes, which become subdirectories. Used in development and tests.
type LocalBucket struct {
	name     string
	basePath string
	mu       sync.RWMutex
}

// NewLocalBucket creates a bucket rooted at {root}/{name}.
func NewLocalBucket(root, name string) (*LocalBucket, error) {
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid bucket name %q", name)
	}

	basePath := filepath.Join(root, name)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	return &LocalBucket{name: name, basePath: basePath}, nil
}

// Name implements Bucket.
func (b *LocalBucket) Name() string { return b.name }

// Dir returns the directory backing the bucket.
func (b *LocalBucket) Dir() string { return b.basePath }

// Open implements Bucket.
func (b *LocalBucket) Open(_ context.Context, object string) (io.ReadCloser, error) {
	p, err := b.Path(object)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	f, err := os.Open(p) //#nosec G304 -- path is confined to the bucket directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound.WithCause(err)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Write implements Bucket. The file is written to a temporary name and renamed
// so readers never observe a partial object.
func (b *LocalBucket) Write(_ context.Context, object string, data []byte, _ string) error {
	if len(data) == 0 {
		return fmt.Errorf("object data cannot be empty")
	}
	p, err := b.Path(object)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //#nosec G306 -- objects are world readable like a public bucket
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

// Delete implements Bucket.
func (b *LocalBucket) Delete(_ context.Context, object string) error {
	p, err := b.Path(object)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Attrs implements Bucket. The generation of a local object is its modification
// time in microseconds, which is also what the bucket watcher reports.
func (b *LocalBucket) Attrs(_ context.Context, object string) (ObjectAttrs, error) {
	p, err := b.Path(object)
	if err != nil {
		return ObjectAttrs{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectAttrs{}, ErrObjectNotFound.WithCause(err)
		}
		return ObjectAttrs{}, fmt.Errorf("failed to stat object: %w", err)
	}
	if info.IsDir() {
		return ObjectAttrs{}, ErrObjectNotFound
	}
	return ObjectAttrs{
		Name:        object,
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(path.Ext(object)),
		Generation:  info.ModTime().UnixMicro(),
		Updated:     info.ModTime(),
	}, nil
}

// List returns the names of all objects, skipping in-flight temporary files.
func (b *LocalBucket) List(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var names []string
	err := filepath.WalkDir(b.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(b.basePath, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket: %w", err)
	}
	return names, nil
}

// Path returns the file backing object, rejecting names that escape the bucket.
func (b *LocalBucket) Path(object string) (string, error) {
	if object == "" {
		return "", errors.Validation("object name cannot be empty")
	}
	clean := path.Clean("/" + object)[1:]
	if clean == "" || clean != object {
		return "", errors.Validationf("invalid object name %q", object)
	}
	return filepath.Join(b.basePath, filepath.FromSlash(clean)), nil
}

// ObjectName maps a file path inside the bucket back to its object name.
func (b *LocalBucket) ObjectName(filePath string) (string, bool) {
	rel, err := filepath.Rel(b.basePath, filePath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
