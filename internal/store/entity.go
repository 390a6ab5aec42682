package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic CRUD over one key prefix with unique secondary indexes.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// Index is a unique secondary index on an entity. Index values must be unique
// across entities; include the ID in the value for non-unique orderings.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
}

// NewEntity creates an Entity for type T stored under prefix.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// WithIndex adds a secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithIndexTransform adds a secondary index whose lookup values pass through
// lookupTransform first.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, lookupTransform: lookupTransform})
	return e
}

// Create stores a new entity. It fails with ErrAlreadyExists when the ID or any
// unique index value is taken, checked in the same transaction as the write.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.update(func(txn *badger.Txn) error {
		// badger holds written keys until commit, so write keys are never pooled.
		key := []byte(e.prefix + id)

		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if err := e.checkIndexConflicts(txn, entity); err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// Upsert creates the entity or replaces the stored one, moving its index entries.
func (e *Entity[T]) Upsert(ctx context.Context, id string, entity *T) error {
	return e.Modify(ctx, id, func(*T) (*T, error) { return entity, nil })
}

// Modify runs a read-modify-write of one entity in a single transaction. fn receives
// the current value (nil when absent) and returns the new value; returning nil
// deletes the entity. Transactions that lose a write race are retried.
func (e *Entity[T]) Modify(ctx context.Context, id string, fn func(current *T) (*T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.update(func(txn *badger.Txn) error {
		current, err := e.getTxn(txn, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if current != nil {
			if err := e.deleteIndexes(txn, current); err != nil {
				return err
			}
		}

		key := []byte(e.prefix + id)
		if next == nil {
			if current == nil {
				return nil
			}
			return txn.Delete(key)
		}

		if err := e.checkIndexConflicts(txn, next); err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal entity: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.setIndexes(txn, id, next)
	})
}

// Get retrieves an entity by ID or returns ErrNotFound.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = e.getTxn(txn, id)
		return err
	})
	return out, err
}

// GetByIndex retrieves an entity through a secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value = e.transform(indexName, value)

	var out *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		idxKey := buildIndexKey(e.prefix, indexName, value)
		defer releaseKey(idxKey)

		item, err := txn.Get(idxKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = e.getTxn(txn, string(id))
		return err
	})
	return out, err
}

// ExistsByIndex reports whether any entity has value in the named index.
func (e *Entity[T]) ExistsByIndex(ctx context.Context, indexName, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	value = e.transform(indexName, value)

	err := e.store.db.View(func(txn *badger.Txn) error {
		idxKey := buildIndexKey(e.prefix, indexName, value)
		defer releaseKey(idxKey)
		_, err := txn.Get(idxKey)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes an entity and its index entries. Deleting a missing entity is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	return e.Modify(ctx, id, func(*T) (*T, error) { return nil, nil })
}

// List iterates over all entities in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			prefix := []byte(e.prefix)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}
				if e.isIndexKey(it.Item().Key()) {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// ListByIndex iterates over entities in the order of an index's values,
// descending when reverse is set.
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName string, reverse bool) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			prefix := indexPrefix(e.prefix, indexName)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.Reverse = reverse

			it := txn.NewIterator(opts)
			defer it.Close()

			seek := prefix
			if reverse {
				// Reverse iteration starts at the last key <= seek.
				seek = append(append([]byte{}, prefix...), 0xFF)
			}

			for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}
				id, err := it.Item().ValueCopy(nil)
				if err != nil {
					yield(nil, err)
					return err
				}
				entity, err := e.getTxn(txn, string(id))
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if !yield(entity, err) || err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// Count returns the number of stored entities.
func (e *Entity[T]) Count(ctx context.Context) (int, error) {
	n := 0
	err := e.store.db.View(func(txn *badger.Txn) error {
		prefix := []byte(e.prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !e.isIndexKey(it.Item().Key()) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (e *Entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	key := buildKey(e.prefix, id)
	defer releaseKey(key)

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var entity T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &entity, nil
}

// isIndexKey reports whether key belongs to a secondary index. Entities without
// indexes may use IDs starting with the index marker.
func (e *Entity[T]) isIndexKey(key []byte) bool {
	return len(e.indexes) > 0 && strings.HasPrefix(string(key[len(e.prefix):]), indexMarker)
}

func (e *Entity[T]) transform(indexName, value string) string {
	for _, idx := range e.indexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			return idx.lookupTransform(value)
		}
	}
	return value
}

func (e *Entity[T]) checkIndexConflicts(txn *badger.Txn, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			idxKey := buildIndexKey(e.prefix, idx.name, value)
			_, err := txn.Get(idxKey)
			releaseKey(idxKey)
			if err == nil {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, value, ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			idxKey := []byte(e.prefix + indexMarker + idx.name + ":" + value)
			if err := txn.Set(idxKey, []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			idxKey := []byte(e.prefix + indexMarker + idx.name + ":" + value)
			if err := txn.Delete(idxKey); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}
