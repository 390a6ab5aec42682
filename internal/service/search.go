package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sharedalbum/album-server/internal/normalize"
	"github.com/sharedalbum/album-server/internal/search"
	"github.com/sharedalbum/album-server/internal/store"
)

// MaxSearchLimit bounds a single full-text search page.
const MaxSearchLimit = 100

// SearchService bridges the full-text index with the store.
type SearchService struct {
	index  *search.Index
	store  store.Repository
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.Index, st store.Repository, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  st,
		logger: logger,
	}
}

// Search runs a full-text query over names and labels.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if params.Limit > MaxSearchLimit {
		params.Limit = MaxSearchLimit
	}
	params.Labels = normalize.Labels(params.Labels)
	return s.index.Search(ctx, params)
}

// DocumentCount returns the number of indexed thumbnails.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocCount()
}

// ReindexAll rebuilds the index from every stored thumbnail reference.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	refs, err := s.store.ListThumbnails(ctx)
	if err != nil {
		return fmt.Errorf("list thumbnails: %w", err)
	}
	if err := s.index.Rebuild(refs); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	s.logger.Info("full reindex complete", "thumbnails", len(refs))
	return nil
}

// ReindexIfEmpty rebuilds the index when it holds no documents but the store has
// thumbnails, which is the state after a fresh deploy or a mapping change. It
// reports whether a rebuild ran.
func (s *SearchService) ReindexIfEmpty(ctx context.Context) (bool, error) {
	docCount, err := s.index.DocCount()
	if err != nil {
		return false, fmt.Errorf("count documents: %w", err)
	}
	if docCount > 0 {
		return false, nil
	}

	stored, err := s.store.CountThumbnails(ctx)
	if err != nil {
		return false, fmt.Errorf("count thumbnails: %w", err)
	}
	if stored == 0 {
		return false, nil
	}

	s.logger.Info("search index is empty but thumbnails exist, reindexing", "thumbnails", stored)
	return true, s.ReindexAll(ctx)
}
