package search

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/sharedalbum/album-server/internal/domain"
)

// Index wraps a Bleve index of thumbnail documents.
//
// All methods are safe for concurrent use. Rebuild takes the write lock and blocks
// everything else until the new index is populated.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory holding search.bleve
	Logger   *slog.Logger // Discards when nil
}

// mappingVersion is bumped whenever buildIndexMapping changes. A mismatch with the
// version file on disk recreates the index on open.
const mappingVersion = "1"

const batchSize = 500

// NewIndex opens the index under DataPath, creating it when missing, corrupted or
// built with an older mapping. A recreated index is empty; callers repopulate it
// from the store (see NeedsPopulate).
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var (
		index        bleve.Index
		err          error
		needsRebuild bool
	)

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create search dir: %w", err)
		}
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexThumbnail adds or replaces the document for ref.
func (s *Index) IndexThumbnail(ref *domain.ThumbnailReference) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := DocumentFromThumbnail(ref)
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexThumbnails indexes refs in batches.
func (s *Index) IndexThumbnails(refs []*domain.ThumbnailReference) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexBatched(s.index, refs)
}

func (s *Index) indexBatched(index bleve.Index, refs []*domain.ThumbnailReference) error {
	for i := 0; i < len(refs); i += batchSize {
		end := min(i+batchSize, len(refs))

		batch := index.NewBatch()
		for _, ref := range refs[i:end] {
			doc := DocumentFromThumbnail(ref)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteThumbnail removes the document for key. Unknown keys are a no-op.
func (s *Index) DeleteThumbnail(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(key)
}

// DocCount returns the number of indexed documents.
func (s *Index) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and repopulates it with refs.
func (s *Index) Rebuild(refs []*domain.ThumbnailReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	if err := s.indexBatched(index, refs); err != nil {
		return err
	}

	s.logger.Info("rebuilt search index", "path", s.path, "documents", len(refs))
	return nil
}
