package store

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/sharedalbum/album-server/internal/domain"
)

// Key prefixes of the album entities.
const (
	notificationPrefix = "ntf:"
	thumbnailPrefix    = "thumb:"
	labelPrefix        = "label:"
)

// Index names.
const (
	indexDedup   = "dedup"
	indexCreated = "created"
)

// maxConflictRetries bounds retries of optimistic transactions that lost a write race.
const maxConflictRetries = 32

// Store is the BadgerDB implementation of Repository.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	notifications *Entity[domain.Notification]
	thumbnails    *Entity[domain.ThumbnailReference]
	labels        *Entity[domain.Label]
}

var _ Repository = (*Store)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.initEntities()

	if logger != nil {
		logger.Info("Badger database opened", "path", path)
	}
	return s, nil
}

func (s *Store) initEntities() {
	s.notifications = NewEntity[domain.Notification](s, notificationPrefix).
		WithIndex(indexDedup, func(n *domain.Notification) []string {
			return []string{n.DedupKey()}
		}).
		WithIndex(indexCreated, func(n *domain.Notification) []string {
			return []string{sortableTime(n.CreatedAt) + ":" + n.ID}
		})

	s.thumbnails = NewEntity[domain.ThumbnailReference](s, thumbnailPrefix).
		WithIndex(indexCreated, func(r *domain.ThumbnailReference) []string {
			return []string{sortableTime(r.CreatedAt) + ":" + r.ThumbnailKey}
		})

	s.labels = NewEntity[domain.Label](s, labelPrefix)
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Backend names the implementation.
func (s *Store) Backend() string { return "badger" }

// update runs fn in a read-write transaction, retrying when badger reports a
// conflict with a concurrent transaction.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
